// Package cmd provides CLI commands for ragline.
//
// Commands:
//   - serve: HTTP API server exposing the answer pipeline
//   - migrate: apply database migrations and exit
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the ragline CLI application.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("ragline - retrieval-augmented chat service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ragline serve [addr]  Start HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  ragline migrate       Apply database migrations and exit")
	fmt.Println("  ragline --version     Show version information")
	fmt.Println("  ragline --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY             Required: Gemini API key")
	fmt.Println("  RAGLINE_POSTGRES_HOST      Postgres host (default: localhost)")
	fmt.Println("  RAGLINE_POSTGRES_PASSWORD  Postgres password")
	fmt.Println("  RAGLINE_RESPONSE_FORMAT    plain | tool | function | structured")
	fmt.Println("  DEBUG                      Optional: Enable debug logging")
}
