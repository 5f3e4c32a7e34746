package main

import (
	"fmt"
	"os"

	"github.com/goodmattg/ultrasound-frames/internal/config"
	"github.com/goodmattg/ultrasound-frames/internal/logging"
	"github.com/goodmattg/ultrasound-frames/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("usframe-mcp - MCP server for ultrasound frame analysis")
	fmt.Println()
	fmt.Println("Usage: usframe-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config FILE    Load settings from a YAML file")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=debug        Log level (debug, info, warn, error)\n", config.EnvLogLevel)
	fmt.Printf("  %s=DIR    Tesseract language data directory\n", config.EnvTessdataPrefix)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client.")
}

func main() {
	var configPath string
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("usframe-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config needs a file")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q\n", args[i])
			os.Exit(2)
		}
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)

	// Stdout is reserved for the MCP protocol.
	log := logging.Component(logging.New(os.Stderr, level), "mcp")
	log.Debug().
		Str("version", Version).
		Str("built", BuildTime).
		Str("commit", GitCommit).
		Msg("starting usframe-mcp")

	srv, err := server.New(cfg, Version, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to start server")
		os.Exit(2)
	}
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
