// specguard: spec/code reconciliation MCP server.
//
// Keeps a specification bundle honest against the codebase and an
// external task tracker: extraction proposes, hardening fingerprints,
// enforcement validates, sync reconciles.
//
// Usage:
//
//	specguard serve            # Start MCP server (stdio transport)
//	specguard watch <bundle>   # Run the sync watch loop in the foreground
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
	sgserver "github.com/HendryAvila/specguard/internal/server"
	syncengine "github.com/HendryAvila/specguard/internal/sync"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "watch":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "Usage: specguard watch <bundle>\n")
			os.Exit(1)
		}
		if err := runWatch(os.Args[2]); err != nil && err != context.Canceled {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("specguard v%s\n", sgserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe() error {
	s, cleanup, err := sgserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	return server.ServeStdio(s)
}

// runWatch builds a sync engine from the project config and runs the
// watch loop until SIGINT/SIGTERM.
func runWatch(bundleName string) error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg, err := config.NewFileStore().LoadOrDefault(root, bundleName)
	if err != nil {
		return err
	}

	bundles, err := bundle.NewSQLiteStore(bundle.DefaultConfig(root))
	if err != nil {
		return err
	}
	defer bundles.Close()

	taskDir := cfg.Sync.TaskDir
	if taskDir == "" {
		taskDir = filepath.Join(config.SDDDir, "tasks")
	}

	engine := syncengine.NewEngine(
		bundles,
		syncengine.NewTaskDirAdapter(filepath.Join(root, taskDir)),
		syncengine.NewFileStateStore(root),
		syncengine.Options{
			BundleName: bundleName,
			Mode:       cfg.Sync.Mode,
			Timeout:    cfg.Timeout(),
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "Watching bundle %q (%s mode, every %s). Ctrl-C to stop.\n",
		bundleName, cfg.Sync.Mode, cfg.Interval())

	return syncengine.NewWatcher(engine, cfg.Interval()).Run(ctx)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `specguard v%s — spec/code reconciliation MCP server

Usage:
  specguard serve            Start the MCP server (stdio transport)
  specguard watch <bundle>   Run the sync watch loop in the foreground
  specguard version          Print the version

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "specguard": {
        "command": "specguard",
        "args": ["serve"]
      }
    }
  }
`, sgserver.Version)
}
