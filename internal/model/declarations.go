package model

import (
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// declaration is the on-disk shape of a tool or function declaration. The
// parameters field is a JSON Schema object passed to the model as-is.
type declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// LoadDeclarations reads tool/function declarations from a JSON file
// containing an array of {name, description, parameters} objects.
func LoadDeclarations(path string) ([]*genai.FunctionDeclaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading declarations file: %w", err)
	}

	var decls []declaration
	if err := json.Unmarshal(data, &decls); err != nil {
		return nil, fmt.Errorf("decoding declarations file %q: %w", path, err)
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("declarations file %q is empty", path)
	}

	out := make([]*genai.FunctionDeclaration, len(decls))
	for i, d := range decls {
		if d.Name == "" {
			return nil, fmt.Errorf("declaration %d in %q has no name", i, path)
		}
		out[i] = &genai.FunctionDeclaration{
			Name:                 d.Name,
			Description:          d.Description,
			ParametersJsonSchema: d.Parameters,
		}
	}
	return out, nil
}
