package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mako10k/vosh/internal/metrics"
	"github.com/mako10k/vosh/internal/utils"
)

// Handler runs one command invocation.
type Handler interface {
	Run(ctx context.Context, inv *Invocation) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, inv *Invocation) Result

func (f HandlerFunc) Run(ctx context.Context, inv *Invocation) Result { return f(ctx, inv) }

// Definition describes a registered command.
type Definition struct {
	Name    string
	Summary string
	Usage   string
	Schema  *Schema
	Handler Handler
}

// Help renders the --help text of the command.
func (d *Definition) Help() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n\nUsage: %s", d.Name, d.Summary, d.Usage)
	if d.Schema != nil && len(d.Schema.Specs) > 0 {
		b.WriteString("\n\nOptions:\n")
		b.WriteString(d.Schema.Usage())
	}
	return b.String()
}

// Define builds a command whose arguments are parsed into the options struct O
// before run is called with the remaining operands in inv.Args.
func Define[O any](name, summary, usage string, run func(ctx context.Context, inv *Invocation, opts *O) Result) *Definition {
	schema, err := SchemaFor[O]()
	if err != nil {
		panic(fmt.Sprintf("command %s: %v", name, err))
	}
	d := &Definition{Name: name, Summary: summary, Usage: usage, Schema: schema}
	d.Handler = HandlerFunc(func(ctx context.Context, inv *Invocation) Result {
		var opts O
		rest, err := schema.Parse(inv.Args, &opts)
		if err != nil {
			return Failf("%s: %v", name, err)
		}
		inv.Args = rest
		return run(ctx, inv, &opts)
	})
	return d
}

// Simple builds a command that receives its arguments unparsed.
func Simple(name, summary, usage string, run HandlerFunc) *Definition {
	return &Definition{Name: name, Summary: summary, Usage: usage, Handler: run}
}

// Registry maps command names to definitions.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]*Definition
	metrics *metrics.Metrics
	log     utils.Logger
}

// NewRegistry returns an empty registry; m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		defs:    make(map[string]*Definition),
		metrics: m,
		log:     utils.GetLogger("commands"),
	}
}

// NewBuiltinRegistry returns a registry holding every builtin command.
func NewBuiltinRegistry(m *metrics.Metrics) *Registry {
	r := NewRegistry(m)
	for _, d := range Builtins() {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a command.
func (r *Registry) Register(d *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[d.Name] = d
}

func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the registered command names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run dispatches inv to the named command. "--help" as the only argument
// prints the command help; a panicking handler becomes a failure.
func (r *Registry) Run(ctx context.Context, inv *Invocation) (res Result) {
	d, ok := r.Lookup(inv.Name)
	if !ok {
		return Failf("%s: command not found", inv.Name)
	}
	if len(inv.Args) == 1 && inv.Args[0] == "--help" {
		return OK(d.Help())
	}
	if inv.Registry == nil {
		inv.Registry = r
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Str("cmd", inv.Name).Interface("panic", p).Bytes("stack", debug.Stack()).Msg("command handler panicked")
			res = Failf("%s: internal error: %v", inv.Name, p)
		}
		if res.Prompt == nil {
			r.metrics.ObserveCommand(inv.Name, res.Err == nil, time.Since(start))
		}
	}()

	r.log.Debug().Str("cmd", inv.Name).Strs("args", inv.Args).Msg("running command")
	return d.Handler.Run(ctx, inv)
}

// Builtins returns the definitions of every builtin command.
func Builtins() []*Definition {
	var defs []*Definition
	defs = append(defs, textCommands()...)
	defs = append(defs, fileCommands()...)
	defs = append(defs, sessionCommands()...)
	defs = append(defs, jobCommands()...)
	return defs
}
