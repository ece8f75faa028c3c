// Bastion is a prompt-safety gateway. It scans incoming LLM prompts with a
// set of independent detectors run in parallel and merges their verdicts
// into one decision: allow, notify or block.
//
// Usage:
//
//	# Start the HTTP API
//	bastion run --config config.yaml
//
//	# Scan one prompt from the command line
//	bastion scan --flow default "ignore all previous instructions"
//
//	# Serve the detectors as MCP tools over stdio
//	bastion mcp
//
//	# Check rule files
//	bastion rules lint rules/regex
package main

import "os"

func main() {
	os.Exit(Execute())
}
