package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mako10k/vosh/internal/cli"
	"github.com/mako10k/vosh/internal/utils"
)

// ApplicationMetadata contains application version information
type ApplicationMetadata struct {
	Name    string
	Version string
}

// Streams are the process streams the application talks to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// ExecuteWithArgs parses args, loads the configuration and runs the
// application. It returns the process exit code.
func ExecuteWithArgs(ctx context.Context, metadata ApplicationMetadata, args []string, streams Streams) (int, error) {
	config, err := cli.ParseArgs(args)
	if err != nil {
		switch err {
		case cli.ErrShowHelp:
			cli.ShowHelp(streams.Out)
			return 0, nil
		case cli.ErrShowVersion:
			fmt.Fprintf(streams.Out, "%s version %s\n", metadata.Name, metadata.Version)
			return 0, nil
		default:
			return 2, fmt.Errorf("argument parsing error: %w", err)
		}
	}

	fileConfig, err := cli.LoadAndMergeConfig(config)
	if err != nil {
		return 1, fmt.Errorf("configuration error: %w", err)
	}
	utils.InitializeLoggerTo(streams.Err, fileConfig.LogLevel)

	a := New(metadata, config, fileConfig, streams)
	if err := a.Run(ctx); err != nil {
		return 1, err
	}
	return a.ExitCode(), nil
}
