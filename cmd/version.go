package cmd

import (
	"fmt"
	"os"
)

// printVersionInfo displays version and environment information.
func printVersionInfo() {
	fmt.Printf("docent v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)

	// Check API key without displaying its content
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		fmt.Println("GEMINI_API_KEY: configured")
	} else {
		fmt.Println("GEMINI_API_KEY: not set (required for the googleai provider)")
	}
}

// printHelp displays usage information.
func printHelp() {
	fmt.Print(`docent - retrieval-augmented knowledge base service

Usage:
  docent [serve] [addr]   Start the HTTP API server (default)
  docent serve --addr :8080
  docent version          Show version information
  docent help             Show this help

Configuration:
  Config file: ~/.docent/config.yaml or ./config.yaml
  Environment: DOCENT_* variables override file settings
               DATABASE_URL overrides the postgres connection
               GEMINI_API_KEY is required for the googleai provider

Endpoints:
  POST /api/conversations          start a conversation
  POST /api/chat/{id}              ask a question
  POST /api/documents/upload       ingest an uploaded file
  POST /api/documents/url          ingest a web page
  POST /api/documents/site         crawl and ingest a site
  GET  /api/documents              list indexed documents
  GET  /api/prompts                manage answer instructions
`)
}
