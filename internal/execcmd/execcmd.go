// Package execcmd implements the Command Executor (spec §4.B): spawn a
// child process with an explicit environment overlay, wait for it to exit
// within a caller-supplied, mutable timeout budget, and capture its output.
package execcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/asydsolutions/sentinel/internal/service"
)

// pollInterval is the fixed 100ms granularity described in §4.B step 4: it
// bounds the latency between child exit and the caller noticing it.
const pollInterval = 100 * time.Millisecond

// outputCap is the 2048-byte limit on drained child output (§4.B step 6).
const outputCap = 2048

// Result carries the outcome of one Execute call.
type Result struct {
	ExitStatus int // -1 if the child's exit was never observed
	Message    string
	TimedOut   bool
}

// Execute spawns cmd, waits for it to exit or for *remaining to be consumed
// (whichever comes first), and returns its outcome. *remaining is
// decremented by pollInterval on every poll; per the testable property in
// spec §8, it never goes positive again once a timeout has occurred. ctx
// carries the daemon-wide shutdown signal (spec §5): cancellation ends the
// wait early, exactly like a timeout, without killing other in-flight
// executions.
func Execute(ctx context.Context, cmd *service.Command, env map[string]string, remaining *time.Duration) (Result, error) {
	if len(cmd.Argv) == 0 {
		return Result{ExitStatus: -1}, errors.New("empty command")
	}

	path, err := exec.LookPath(cmd.Argv[0])
	if err != nil {
		return Result{ExitStatus: -1, Message: fmt.Sprintf("Program %s failed: %s", cmd.Argv[0], err)}, err
	}

	c := exec.Command(path, cmd.Argv[1:]...)
	c.Env = flattenEnv(env)

	var stdout, stderr limitedBuffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if cmd.UID != nil || cmd.GID != nil {
		c.SysProcAttr = &syscall.SysProcAttr{Credential: credential(cmd)}
	}

	if err := c.Start(); err != nil {
		return Result{ExitStatus: -1, Message: fmt.Sprintf("Program %s failed: %s", cmd.Argv[0], err)}, err
	}

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return finish(cmd, &stdout, &stderr, c, false), nil

		case <-ticker.C:
			*remaining -= pollInterval
			if *remaining <= 0 {
				killChild(c)
				<-done // drain so c.ProcessState is populated, if ever
				return finish(cmd, &stdout, &stderr, c, true), nil
			}

		case <-ctx.Done():
			killChild(c)
			<-done
			return finish(cmd, &stdout, &stderr, c, true), nil
		}
	}
}

func finish(cmd *service.Command, stdout, stderr *limitedBuffer, c *exec.Cmd, timedOut bool) Result {
	output := stderr.String()
	if output == "" {
		output = stdout.String()
	}

	status := -1
	if c.ProcessState != nil {
		status = c.ProcessState.ExitCode()
	}

	var msg string
	switch {
	case timedOut && output != "":
		msg = fmt.Sprintf("Program timed out -- %s", output)
	case timedOut:
		msg = fmt.Sprintf("Program %s timed out", cmd.Argv[0])
	default:
		msg = output
	}

	return Result{ExitStatus: status, Message: msg, TimedOut: timedOut}
}

func killChild(c *exec.Cmd) {
	if c.Process != nil {
		_ = c.Process.Kill()
	}
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func credential(cmd *service.Command) *syscall.Credential {
	cred := &syscall.Credential{}
	if cmd.UID != nil {
		cred.Uid = uint32(*cmd.UID)
	}
	if cmd.GID != nil {
		cred.Gid = uint32(*cmd.GID)
	}
	return cred
}

// limitedBuffer caps how much child output is retained, matching the
// 2048-byte debug cap: a runaway child (e.g. `yes`) cannot pin memory.
type limitedBuffer struct {
	buf bytes.Buffer
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	remaining := outputCap - l.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard, but report full write to the caller
	}
	if len(p) > remaining {
		l.buf.Write(p[:remaining])
	} else {
		l.buf.Write(p)
	}
	return len(p), nil
}

func (l *limitedBuffer) String() string {
	return l.buf.String()
}
