package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-perfil-reader/internal/config"
	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/mcp"
	"github.com/a3tai/mcp-perfil-reader/internal/pipeline"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol
		log.SetOutput(stderr)
	} else {
		log.SetOutput(stdout)
	}
	log.SetLevel(cfg.LogLevel)
}

// applyBuildVersion overrides the configured version with the one set at build time
func applyBuildVersion(cfg *config.Config) {
	if version != "dev" {
		cfg.Version = version
	}
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

func run(ctx context.Context, cfg *config.Config) error {
	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	server, err := mcp.NewServer(cfg, p.Service)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	if hasVersionFlag(os.Args[1:]) {
		printVersion(os.Stdout)
		return
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg, os.Stdout, os.Stderr)
	applyBuildVersion(cfg)
	log.Debugf("Starting with configuration: %s", cfg.String())

	// SIGINT/SIGTERM cancel the context; both transports drain on cancellation
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg); err != nil && ctx.Err() == nil {
		log.Errorf("Server error: %v", err)
		stop()
		os.Exit(1)
	}
	log.Infof("Server stopped")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP Perfil Reader\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
