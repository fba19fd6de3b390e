package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Common errors for control flow
var (
	ErrShowHelp    = errors.New("show help")
	ErrShowVersion = errors.New("show version")
)

// Config holds the command line options of vosh
type Config struct {
	Command     string // -c: Command line to run instead of a script or the REPL
	ScriptFile  string // first positional argument: script inside the host file system to run
	ConfigFile  string // --config: Configuration file path
	StorePath   string // -d/--db: buntdb snapshot file
	User        string // -u/--user: Start the session as this user
	Verbosity   int    // -v/--verbose: Log verbosity 1-5
	MetricsAddr string // --metrics-addr: Serve Prometheus metrics on this address
	Reset       bool   // --reset: Start from a fresh tree, replacing the stored snapshot

	// Derived configuration
	ConfigExplicit bool // --config was given on the command line
}

// ParseArgs parses command line arguments and returns configuration
func ParseArgs(args []string) (*Config, error) {
	return parseArgs(args, os.Stderr)
}

func parseArgs(args []string, errOut io.Writer) (*Config, error) {
	var config Config

	fs := flag.NewFlagSet("vosh", flag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.StringVar(&config.Command, "c", "", "Command line to execute")
	fs.StringVar(&config.Command, "command", "", "Command line to execute")

	fs.StringVar(&config.ConfigFile, "config", "", "Configuration file path (.yaml, .yml or .json)")

	fs.StringVar(&config.StorePath, "d", "", "Snapshot database file (default in memory)")
	fs.StringVar(&config.StorePath, "db", "", "Snapshot database file (default in memory)")

	fs.StringVar(&config.User, "u", "", "Start the session as this user")
	fs.StringVar(&config.User, "user", "", "Start the session as this user")

	fs.IntVar(&config.Verbosity, "v", 0, "Log verbosity from 1 (errors) to 5 (trace)")
	fs.IntVar(&config.Verbosity, "verbose", 0, "Log verbosity from 1 (errors) to 5 (trace)")

	fs.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	fs.BoolVar(&config.Reset, "reset", false, "Start from a fresh file system")

	var showHelp, showVersion bool
	fs.BoolVar(&showHelp, "h", false, "Show help")
	fs.BoolVar(&showHelp, "help", false, "Show help")
	fs.BoolVar(&showVersion, "V", false, "Show version")
	fs.BoolVar(&showVersion, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if showHelp {
		return nil, ErrShowHelp
	}
	if showVersion {
		return nil, ErrShowVersion
	}

	remaining := fs.Args()
	if len(remaining) > 1 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(remaining[1:], " "))
	}
	if len(remaining) == 1 {
		config.ScriptFile = remaining[0]
	}
	if config.Command != "" && config.ScriptFile != "" {
		return nil, fmt.Errorf("-c and a script file are mutually exclusive")
	}
	if config.Verbosity < 0 || config.Verbosity > 5 {
		return nil, fmt.Errorf("verbosity must be between 1 and 5: %d", config.Verbosity)
	}

	if config.ConfigFile != "" {
		config.ConfigExplicit = true
	} else if home, err := os.UserHomeDir(); err == nil {
		config.ConfigFile = filepath.Join(home, ".vosh.yaml")
	}
	return &config, nil
}

// ShowHelp displays help information
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, `vosh - virtual operating system shell

DESCRIPTION:
    An interactive shell over a simulated, permissioned file system that is
    kept in memory and persisted as snapshots.

USAGE:
    vosh [OPTIONS] [SCRIPT]

OPTIONS:
    -c, --command <line>    Execute the command line and exit
    --config <file>         Configuration file (default: ~/.vosh.yaml)
    -d, --db <file>         Snapshot database file (default: in memory)
    -u, --user <name>       Start the session as this user
    -v, --verbose <1-5>     Log verbosity
    --metrics-addr <addr>   Serve Prometheus metrics, e.g. :9100
    --reset                 Start from a fresh file system
    -h, --help              Show this help message
    -V, --version           Show version information

ARGUMENTS:
    SCRIPT                  Path of a script inside the virtual file system

EXAMPLES:
    vosh -c 'echo hi | tr h H'
    vosh -d ~/.vosh.db
    echo 'ls /home' | vosh

CONFIGURATION:
    Priority (highest to lowest): command line, VOSH_* environment
    variables, configuration file, built-in defaults.

        quota: 67108864
        host_name: vosh
        default_user: Guest
        compress: true
        users:
          - name: alice
            groups: [staff]
`)
}
