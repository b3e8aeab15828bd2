// Package cmd provides the command-line interface for apigateway.
//
// # Available Commands
//
//   - serve: Run the gateway until SIGINT or SIGTERM
//   - routes: Print the route table, legacy redirects included
//   - config show: Print the effective configuration with secrets redacted
//   - config validate: Validate a configuration file
//   - version: Print build information
//
// # Command Examples
//
//	// Serve behind a serverless rewrite that forwards /api/*
//	apigateway serve --serverless
//
//	// Serve articles from a directory of YAML documents
//	APIGATEWAY_CONTENT_FILE_DIR=./content apigateway serve --provider file
//
//	// Inspect the route table as JSON
//	apigateway routes --format json
//
// # Configuration
//
// Values resolve from flags, then APIGATEWAY_* environment variables, then
// .apigateway.yml, then defaults. APIGATEWAY_CONFIG_FILE points at another file.
package cmd
