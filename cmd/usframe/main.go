// Command usframe extracts focus regions and overlay metadata from ultrasound
// frames.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/goodmattg/ultrasound-frames/internal/config"
	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/logging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Exit codes.
const (
	exitOK            = 0
	exitFrameFailures = 1
	exitUsage         = 2
	exitIO            = 3
)

// errFramesFailed is returned by commands that finished but skipped frames.
var errFramesFailed = errors.New("one or more frames failed")

func usage(w io.Writer) {
	fmt.Fprintln(w, "usframe - ultrasound frame focus and metadata extraction")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: usframe [--config FILE] [--log-level LEVEL] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  focus            Locate and save the focus region of one frame or a folder")
	fmt.Fprintln(w, "  metadata         Read the overlay metadata of a frame")
	fmt.Fprintln(w, "  batch            Process every frame of a manifest")
	fmt.Fprintln(w, "  check-manifest   List manifest frames missing from the source tree")
	fmt.Fprintln(w, "  version          Print version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'usframe <command> --help' for the flags of a command.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintf(w, "  %s, %s, %s\n", config.EnvLogLevel, config.EnvTessdataPrefix, config.EnvWorkers)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit status: 0 success, 1 frames failed, 2 usage or configuration error, 3 I/O error.")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what every command needs.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("usframe", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { usage(stderr) }
	configPath := global.String("config", "", "YAML configuration file")
	logLevel := global.String("log-level", "", "log level (debug, info, warn, error)")
	if err := global.Parse(args); err != nil {
		return exitCode(flagError(err))
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr)
		return exitUsage
	}
	name, cmdArgs := rest[0], rest[1:]

	if name == "version" {
		fmt.Fprintf(stdout, "usframe %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return exitOK
	}

	commands := map[string]func(*app, []string) error{
		"focus":          (*app).focus,
		"metadata":       (*app).metadata,
		"batch":          (*app).batch,
		"check-manifest": (*app).checkManifest,
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return exitUsage
	}

	cfg, err := config.Resolve(*configPath)
	if err == nil && *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, lerr := logging.ParseLevel(cfg.LogLevel)
	if err == nil {
		err = lerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitCode(err)
	}

	a := &app{
		cfg:    cfg,
		log:    logging.Component(logging.Console(stderr, level), name),
		stdout: stdout,
		stderr: stderr,
	}
	err = cmd(a, cmdArgs)
	if err != nil && !errors.Is(err, flag.ErrHelp) && !errors.Is(err, errFramesFailed) {
		a.log.Error().Err(err).Msg(name + " failed")
	}
	return exitCode(err)
}

// flagError marks flag parsing failures as usage errors.
func flagError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fault.Misconfigured("%v", err)
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case fault.IsMisconfigured(err):
		return exitUsage
	case errors.Is(err, errFramesFailed), fault.IsFrameFailure(err):
		return exitFrameFailures
	default:
		return exitIO
	}
}
