// Command steward runs the governed improvement-pipeline MCP server.
//
// The server speaks MCP over stdio and is meant to be launched by an AI
// coding tool, not by hand. It walks improvement work through a fixed
// sequence of stages: multi-perspective research, consensus, triage under
// target policy, an approval gate, and a tracked delivery lifecycle, with
// ADR-backed anti-oscillation guarding settled decisions along the way.
//
//	steward serve    run the MCP server on stdio
//	steward update   replace this binary with the latest release
package main

import (
	"fmt"
	"os"

	stewardserver "github.com/HendryAvila/steward/internal/server"
	"github.com/HendryAvila/steward/internal/updater"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("steward v%s\n", stewardserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := stewardserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Stdout belongs to the MCP transport; anything we print ourselves
	// goes to stderr.
	go notifyIfOutdated()

	// ServeStdio returns when the client closes stdin, which is how MCP
	// hosts shut a stdio server down.
	return server.ServeStdio(s)
}

// notifyIfOutdated prints a one-shot upgrade notice to stderr when a
// newer release exists. Best effort: offline hosts see nothing.
func notifyIfOutdated() {
	result := updater.CheckVersion(stewardserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\nsteward v%s is available (running v%s)\nrun `steward update`, or see %s\n\n",
			result.LatestVersion, result.CurrentVersion, result.ReleaseURL,
		)
	}
}

// runUpdate swaps the installed binary for the latest release.
func runUpdate() {
	fmt.Fprintln(os.Stderr, "checking for a newer release...")

	result := updater.CheckVersion(stewardserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "updating v%s -> v%s\n", result.CurrentVersion, result.LatestVersion)

	if err := updater.SelfUpdate(stewardserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "download manually from %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "updated to v%s; restart steward to pick it up\n", result.LatestVersion)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `steward v%s — governed improvement-pipeline MCP server

Usage:
  steward serve      run the MCP server (stdio transport)
  steward update     replace this binary with the latest release
  steward version    print the running version

steward is started by an MCP host, not interactively. Register it in
your tool's MCP configuration:

  {
    "mcpServers": {
      "steward": {
        "command": "steward",
        "args": ["serve"]
      }
    }
  }

Project: https://github.com/HendryAvila/steward
`, stewardserver.Version)
}
