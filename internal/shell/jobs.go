package shell

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/mako10k/vosh/internal/commands"
	"github.com/mako10k/vosh/internal/metrics"
	"github.com/mako10k/vosh/internal/utils"
)

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobRunning  JobStatus = "running"
	JobFinished JobStatus = "finished"
	JobKilled   JobStatus = "killed"
)

// DefaultNoticeBuffer is the number of settlement notices kept for the host
// before further ones are dropped.
const DefaultNoticeBuffer = 64

// Notice is emitted once when a job settles.
type Notice struct {
	JobID   int
	Command string
	Status  JobStatus
	Err     error
}

func (n Notice) String() string {
	switch {
	case n.Status == JobKilled:
		return fmt.Sprintf("[Job %d killed]", n.JobID)
	case n.Err != nil:
		return fmt.Sprintf("[Job %d finished with error: %v]", n.JobID, n.Err)
	default:
		return fmt.Sprintf("[Job %d finished]", n.JobID)
	}
}

type job struct {
	id      int
	command string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	killed  atomic.Bool
	err     error
}

// JobManager runs pipelines in the background. Every job gets its own
// cancellation context, detached from the caller, and is dropped from the
// active set as soon as it settles.
type JobManager struct {
	lastID  atomic.Int64
	jobs    *xsync.Map[int, *job]
	notices chan Notice
	metrics *metrics.Metrics
	log     utils.Logger
}

var _ commands.Jobs = (*JobManager)(nil)

// NewJobManager returns a manager whose notice channel holds buffer entries.
func NewJobManager(buffer int, m *metrics.Metrics) *JobManager {
	if buffer <= 0 {
		buffer = DefaultNoticeBuffer
	}
	return &JobManager{
		jobs:    xsync.NewMap[int, *job](),
		notices: make(chan Notice, buffer),
		metrics: m,
		log:     utils.GetLogger("jobs"),
	}
}

// Spawn starts run in its own goroutine and returns the new job id at once.
func (jm *JobManager) Spawn(command string, run func(ctx context.Context) error) int {
	id := int(jm.lastID.Add(1))
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:      id,
		command: command,
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	jm.jobs.Store(id, j)
	jm.metrics.JobStarted()
	jm.log.Debug().Int("job", id).Str("cmd", command).Msg("job started")

	go func() {
		defer close(j.done)
		defer cancel()
		j.err = run(ctx)
		jm.settle(j)
	}()
	return id
}

func (jm *JobManager) settle(j *job) {
	jm.jobs.Delete(j.id)
	status := JobFinished
	if j.killed.Load() {
		status = JobKilled
	}
	jm.metrics.JobSettled(string(status))
	jm.log.Debug().Int("job", j.id).Str("status", string(status)).Err(j.err).Msg("job settled")

	n := Notice{JobID: j.id, Command: j.command, Status: status, Err: j.err}
	if status == JobKilled {
		n.Err = nil
	}
	select {
	case jm.notices <- n:
	default:
		jm.log.Warn().Int("job", j.id).Msg("notice buffer full, dropping job notice")
	}
}

// Kill cancels the job and waits until it has settled.
func (jm *JobManager) Kill(ctx context.Context, id int) error {
	j, ok := jm.jobs.Load(id)
	if !ok {
		return &JobError{ID: id}
	}
	j.killed.Store(true)
	j.cancel()
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the job settles and returns its error.
func (jm *JobManager) Wait(ctx context.Context, id int) error {
	j, ok := jm.jobs.Load(id)
	if !ok {
		return &JobError{ID: id}
	}
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns the active jobs ordered by id.
func (jm *JobManager) List() []commands.JobInfo {
	var out []commands.JobInfo
	jm.jobs.Range(func(id int, j *job) bool {
		out = append(out, commands.JobInfo{
			ID:      id,
			Command: j.command,
			Status:  string(JobRunning),
			Started: j.started,
		})
		return true
	})
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Active returns the number of running jobs.
func (jm *JobManager) Active() int { return jm.jobs.Size() }

// Notices delivers one Notice per settled job.
func (jm *JobManager) Notices() <-chan Notice { return jm.notices }

// Shutdown kills every active job and waits for all of them.
func (jm *JobManager) Shutdown(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, info := range jm.List() {
		id := info.ID
		g.Go(func() error {
			if err := jm.Kill(ctx, id); err != nil {
				if _, gone := err.(*JobError); gone {
					return nil
				}
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
