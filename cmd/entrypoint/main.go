// Package main provides the Docker container entrypoint
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

func main() {
	runType := getEnvWithDefault("RUN_TYPE", "serve")

	// Execute the appropriate binary based on RUN_TYPE
	switch runType {
	case "serve", "refresh":
		execBinary("/app/bin/sharegate", runType)
	case "migrate":
		execBinary("/app/bin/db", "migrate")
	case "export":
		execBinary("/app/bin/export", "--output", getEnvWithDefault("EXPORT_DIR", "/app/exports"))
	default:
		fmt.Fprintf(os.Stderr, "Invalid RUN_TYPE. Must be one of 'serve', 'refresh', 'migrate' or 'export'\n")
		fmt.Fprintf(os.Stderr, "Usage: RUN_TYPE=<type> [EXPORT_DIR=<dir>]\n")
		os.Exit(1)
	}
}

// getEnvWithDefault returns the environment variable value or the default if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// execBinary executes the specified binary with given arguments.
func execBinary(path string, args ...string) {
	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute %s: %v\n", filepath.Base(path), err)
		os.Exit(1)
	}
}
