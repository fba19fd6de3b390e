package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/mako10k/vosh/internal/commands"
	"github.com/mako10k/vosh/internal/identity"
	"github.com/mako10k/vosh/internal/shell/parser"
	"github.com/mako10k/vosh/internal/utils"
	"github.com/mako10k/vosh/internal/vfs"
)

// Outcome is the result of running one command line.
type Outcome struct {
	Output   string  // output of the foreground pipelines, joined by newlines
	Err      error   // error of the last pipeline that ran
	Failures []error // every pipeline error, in order
	Jobs     []int   // ids of the jobs started by &
	Pending  *Pending
}

func (o Outcome) Success() bool { return o.Err == nil && o.Pending == nil }

// Pending is a command line suspended on a prompt. Resume continues it with
// the supplied input: the rest of the pipeline, its redirection and the
// remaining sequence.
type Pending struct {
	Message string
	resume  func(ctx context.Context, input string) Outcome
}

func (p *Pending) Resume(ctx context.Context, input string) Outcome {
	return p.resume(ctx, input)
}

type runMode int

const (
	modeInteractive runMode = iota
	modeScript
	modeBackground
)

// ExecutorConfig lists the collaborators of an Executor.
type ExecutorConfig struct {
	FS            *vfs.FileSystem
	Registry      *commands.Registry
	Users         *identity.Registry
	Aliases       *AliasTable
	Jobs          *JobManager
	MaxAliasDepth int
}

// Executor runs command lines for a session: preprocessing, parsing,
// sequencing, pipes, redirection and background jobs.
type Executor struct {
	fs            *vfs.FileSystem
	registry      *commands.Registry
	users         *identity.Registry
	aliases       *AliasTable
	jobs          *JobManager
	maxAliasDepth int
	log           utils.Logger
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Aliases == nil {
		cfg.Aliases = NewAliasTable()
	}
	if cfg.Jobs == nil {
		cfg.Jobs = NewJobManager(0, nil)
	}
	if cfg.MaxAliasDepth <= 0 {
		cfg.MaxAliasDepth = DefaultMaxAliasDepth
	}
	ex := &Executor{
		fs:            cfg.FS,
		registry:      cfg.Registry,
		users:         cfg.Users,
		aliases:       cfg.Aliases,
		jobs:          cfg.Jobs,
		maxAliasDepth: cfg.MaxAliasDepth,
		log:           utils.GetLogger("executor"),
	}
	ex.registry.Register(ex.scriptCommand())
	return ex
}

func (ex *Executor) Jobs() *JobManager { return ex.jobs }

func (ex *Executor) Aliases() *AliasTable { return ex.aliases }

// Execute runs line in sess. Preprocessing and parse errors are reported
// before anything runs.
func (ex *Executor) Execute(ctx context.Context, sess *Session, line string) Outcome {
	return ex.execute(ctx, sess, line, modeInteractive)
}

func (ex *Executor) execute(ctx context.Context, sess *Session, line string, mode runMode) Outcome {
	text, err := Preprocess(line, sess.Env(), ex.aliases, ex.maxAliasDepth)
	if err != nil {
		return failed(err)
	}
	units, err := parser.Parse(text)
	if err != nil {
		return failed(err)
	}
	x := &execution{ex: ex, sess: sess, mode: mode, units: units, last: true}
	return x.run(ctx)
}

func failed(err error) Outcome {
	return Outcome{Err: err, Failures: []error{err}}
}

// execution walks the units of one line. It survives suspension so a
// prompt can be answered and the line continued.
type execution struct {
	ex    *Executor
	sess  *Session
	mode  runMode
	units []parser.Unit
	next  int
	last  bool

	outputs []string
	out     Outcome
}

func (x *execution) run(ctx context.Context) Outcome {
	for x.next < len(x.units) {
		i := x.next
		x.next++
		if i > 0 && skipped(x.units[i-1].Operator, x.last) {
			continue
		}
		p := x.units[i].Pipeline
		if p.Background {
			x.out.Jobs = append(x.out.Jobs, x.ex.spawn(x.sess, p))
			x.last = true
			continue
		}
		if err := ctx.Err(); err != nil {
			x.record("", err)
			break
		}
		r := x.ex.newPipelineRun(x.sess, p, x.mode)
		step := r.start(ctx)
		if step.prompt != nil {
			return x.suspend(r, step.prompt)
		}
		x.record(step.output, step.err)
	}
	x.out.Output = strings.Join(x.outputs, "\n")
	return x.out
}

// skipped applies the short circuit of the operator preceding a pipeline.
func skipped(prev parser.Operator, lastSucceeded bool) bool {
	switch prev {
	case parser.OpAnd:
		return !lastSucceeded
	case parser.OpOr:
		return lastSucceeded
	default:
		return false
	}
}

func (x *execution) record(output string, err error) {
	x.last = err == nil
	x.out.Err = err
	if err != nil {
		x.out.Failures = append(x.out.Failures, err)
	}
	if output != "" {
		x.outputs = append(x.outputs, output)
	}
}

// suspend hands out what has been produced so far together with the prompt.
func (x *execution) suspend(r *pipelineRun, prompt *commands.Prompt) Outcome {
	out := x.out
	out.Output = strings.Join(x.outputs, "\n")
	x.outputs, x.out = nil, Outcome{}
	out.Pending = &Pending{
		Message: prompt.Message,
		resume: func(ctx context.Context, input string) Outcome {
			step := r.resume(ctx, prompt, input)
			if step.prompt != nil {
				return x.suspend(r, step.prompt)
			}
			x.record(step.output, step.err)
			return x.run(ctx)
		},
	}
	return out
}

func (ex *Executor) spawn(sess *Session, p *parser.Pipeline) int {
	bg := sess.Clone()
	return ex.jobs.Spawn(p.String(), func(ctx context.Context) error {
		return ex.newPipelineRun(bg, p, modeBackground).start(ctx).err
	})
}

type step struct {
	output string
	err    error
	prompt *commands.Prompt
}

// pipelineRun executes the segments of one pipeline left to right, feeding
// the output of each to the next.
type pipelineRun struct {
	ex    *Executor
	sess  *Session
	p     *parser.Pipeline
	mode  runMode
	seg   int
	stdin string
	piped bool
}

func (ex *Executor) newPipelineRun(sess *Session, p *parser.Pipeline, mode runMode) *pipelineRun {
	return &pipelineRun{ex: ex, sess: sess, p: p, mode: mode}
}

func (r *pipelineRun) start(ctx context.Context) step {
	if r.p.InputRedirect != "" {
		content, err := r.ex.fs.ReadFile(resolve(r.sess, r.p.InputRedirect), r.sess.Cred())
		if err != nil {
			return step{err: fmt.Errorf("input redirection: %w", err)}
		}
		r.stdin, r.piped = content, true
	}
	return r.advance(ctx)
}

func (r *pipelineRun) advance(ctx context.Context) step {
	for r.seg < len(r.p.Segments) {
		res := r.ex.invoke(ctx, r.sess, r.p.Segments[r.seg], r.stdin, r.piped, r.mode == modeBackground)
		if s, stop := r.settle(res); stop {
			return s
		}
	}
	return r.finish(ctx)
}

func (r *pipelineRun) resume(ctx context.Context, prompt *commands.Prompt, input string) step {
	if s, stop := r.settle(prompt.Resume(ctx, input)); stop {
		return s
	}
	return r.advance(ctx)
}

// settle consumes the result of the current segment. stop is set when the
// pipeline cannot go on, because it failed or waits for input.
func (r *pipelineRun) settle(res commands.Result) (s step, stop bool) {
	name := r.p.Segments[r.seg].Name
	if res.Prompt != nil {
		switch r.mode {
		case modeBackground:
			return step{err: &PipelineError{Command: name, Err: ErrNoInput}}, true
		case modeScript:
			return step{err: &PipelineError{Command: name, Err: ErrScriptInput}}, true
		}
		return step{prompt: res.Prompt}, true
	}
	if res.Err != nil {
		r.ex.log.Debug().Str("cmd", name).Err(res.Err).Msg("pipeline segment failed")
		return step{output: res.Output, err: &PipelineError{Command: name, Err: res.Err}}, true
	}
	r.stdin, r.piped = res.Output, true
	r.seg++
	return step{}, false
}

// finish applies output redirection. Redirected output is not shown.
func (r *pipelineRun) finish(ctx context.Context) step {
	redir := r.p.Output
	if redir == nil {
		return step{output: r.stdin}
	}
	p := resolve(r.sess, redir.Path)
	cred := r.sess.Cred()
	var err error
	if redir.Mode == parser.Append {
		err = r.ex.fs.AppendFile(p, r.stdin, cred)
	} else {
		err = r.ex.fs.CreateOrUpdateFile(p, r.stdin, cred)
	}
	if err != nil {
		return step{err: fmt.Errorf("redirection: %w", err)}
	}
	// The write has landed; persist it even if the job is being killed.
	if err := r.ex.fs.Save(context.WithoutCancel(ctx)); err != nil {
		return step{err: fmt.Errorf("redirection: failed to save file system: %w", err)}
	}
	return step{}
}

func (ex *Executor) invoke(ctx context.Context, sess *Session, seg parser.Segment, stdin string, piped, background bool) commands.Result {
	inv := &commands.Invocation{
		Name:       seg.Name,
		Args:       expandGlobs(ex.fs, sess, seg.Args),
		Stdin:      stdin,
		Piped:      piped,
		Background: background,
		FS:         ex.fs,
		Session:    sess,
		Env:        sess.Env(),
		Aliases:    ex.aliases,
		Jobs:       ex.jobs,
		Users:      ex.users,
		Registry:   ex.registry,
	}
	return ex.registry.Run(ctx, inv)
}

// resolve makes target absolute against the session, expanding a leading ~.
func resolve(sess *Session, target string) string { return sess.Resolve(target) }
