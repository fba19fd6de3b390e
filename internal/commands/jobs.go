package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func jobCommands() []*Definition {
	return []*Definition{
		Define("sleep", "Pause for a number of seconds", "sleep seconds", sleep),
		Define("delay", "Pause for a number of milliseconds", "delay milliseconds", delay),
		Define("ps", "Report the active background jobs", "ps", ps),
		Define("kill", "Terminate a background job", "kill <job_id>", kill),
		Define("true", "Do nothing, successfully", "true", func(context.Context, *Invocation, *noOptions) Result { return OK("") }),
		Define("false", "Do nothing, unsuccessfully", "false", func(context.Context, *Invocation, *noOptions) Result {
			return Result{Err: errFalse}
		}),
	}
}

// errFalse is the failure reported by false. It carries no message of its own.
var errFalse = exitStatus(1)

type exitStatus int

func (e exitStatus) Error() string { return "exit status " + strconv.Itoa(int(e)) }

func sleep(ctx context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) != 1 {
		return Failf("sleep: missing operand")
	}
	secs, err := strconv.ParseFloat(inv.Args[0], 64)
	if err != nil || secs < 0 {
		return Failf("sleep: invalid time interval '%s'", inv.Args[0])
	}
	return wait(ctx, inv.Name, time.Duration(secs*float64(time.Second)))
}

func delay(ctx context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) != 1 {
		return Failf("delay: missing operand")
	}
	ms, err := strconv.Atoi(inv.Args[0])
	if err != nil || ms < 1 {
		return Failf("delay: Invalid delay time '%s'. Must be a positive integer.", inv.Args[0])
	}
	return wait(ctx, inv.Name, time.Duration(ms)*time.Millisecond)
}

// wait blocks for d or until ctx is canceled.
func wait(ctx context.Context, name string, d time.Duration) Result {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return OK("")
	case <-ctx.Done():
		return Fail(fmt.Errorf("%s: operation cancelled: %w", name, ctx.Err()))
	}
}

func ps(_ context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) > 0 {
		return Failf("ps: too many arguments")
	}
	jobs := inv.Jobs.List()
	if len(jobs) == 0 {
		return OK("No active background jobs.")
	}
	lines := []string{"  PID   COMMAND"}
	for _, j := range jobs {
		lines = append(lines, fmt.Sprintf("  %-5d %s", j.ID, j.Command))
	}
	return OK(joinLines(lines))
}

func kill(ctx context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) != 1 {
		return Failf("Usage: kill <job_id>")
	}
	id, err := strconv.Atoi(strings.TrimPrefix(inv.Args[0], "%"))
	if err != nil {
		return Failf("kill: invalid job ID: %s", inv.Args[0])
	}
	if err := inv.Jobs.Kill(ctx, id); err != nil {
		return Fail(fmt.Errorf("kill: %w", err))
	}
	return OK(fmt.Sprintf("Signal sent to terminate job %d.", id))
}
