// Package scheduler submits one-shot jobs to the host's at(1) daemon.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/repodeploy/pkg/logger"
)

// ErrScheduler marks a failure reported by, or while talking to, the scheduler.
var ErrScheduler = errors.New("scheduler error")

// DefaultBinary is the at(1) executable looked up on PATH.
const DefaultBinary = "at"

// Scheduler queues a shell command to run once at a wall-clock time.
type Scheduler interface {
	Available() bool
	Schedule(ctx context.Context, runAt time.Time, command string) (int, error)
	Cancel(ctx context.Context, jobID int) (bool, error)
	List(ctx context.Context) ([]Job, error)
}

// Job is one pending entry of the at queue.
type Job struct {
	ID    int    `json:"id"`
	When  string `json:"when"`
	Queue string `json:"queue,omitempty"`
	User  string `json:"user,omitempty"`
}

// Runner executes a program and captures its output. A non-zero exit is
// reported as *exec.ExitError together with the captured output.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin string) (stdout, stderr []byte, err error)
	LookPath(name string) (string, error)
}

// ExecRunner runs real processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, stdin string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- binary from config, args built here
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// At drives the at/atq/atrm family through the single at binary.
type At struct {
	binary string
	runner Runner
	log    *logger.Logger
}

// NewAt returns an at adapter. An empty binary means DefaultBinary; a nil
// runner means ExecRunner.
func NewAt(binary string, runner Runner, log *logger.Logger) *At {
	if binary == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &At{binary: binary, runner: runner, log: log}
}

// Available reports whether the at binary can be found.
func (a *At) Available() bool {
	_, err := a.runner.LookPath(a.binary)
	return err == nil
}

// Schedule queues command for runAt (minute precision, local time) and returns the job id.
func (a *At) Schedule(ctx context.Context, runAt time.Time, command string) (int, error) {
	args := []string{"-t", runAt.Local().Format("0601021504")}
	a.log.Debug("Submitting at job",
		logger.String("args", strings.Join(args, " ")),
		logger.String("command", command))

	stdout, stderr, err := a.runner.Run(ctx, a.binary, args, command+"\n")
	a.log.Trace("at output",
		logger.String("stdout", string(stdout)),
		logger.String("stderr", string(stderr)))
	if err != nil {
		return 0, a.fail("schedule", err, stderr)
	}

	id, ok := parseJobID(stderr)
	if !ok {
		id, ok = parseJobID(stdout)
	}
	if !ok {
		return 0, fmt.Errorf("%w: could not find job id in at output %q", ErrScheduler, strings.TrimSpace(string(stderr)))
	}
	a.log.Info("Scheduled job", logger.Int("job_id", id), logger.Time("run_at", runAt))
	return id, nil
}

// Cancel removes jobID from the queue. It reports false, without error, when
// at refuses (typically because the job already ran or never existed).
func (a *At) Cancel(ctx context.Context, jobID int) (bool, error) {
	_, stderr, err := a.runner.Run(ctx, a.binary, []string{"-r", strconv.Itoa(jobID)}, "")
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		a.log.Warn("at refused to remove job",
			logger.Int("job_id", jobID),
			logger.String("stderr", strings.TrimSpace(string(stderr))))
		return false, nil
	}
	return false, a.fail("cancel", err, stderr)
}

// List returns the pending jobs of the current user.
func (a *At) List(ctx context.Context) ([]Job, error) {
	stdout, stderr, err := a.runner.Run(ctx, a.binary, []string{"-l"}, "")
	if err != nil {
		return nil, a.fail("list", err, stderr)
	}
	return parseQueue(stdout), nil
}

// Lookup returns the queued job with the given id.
func Lookup(ctx context.Context, s Scheduler, jobID int) (Job, bool, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return Job{}, false, err
	}
	for _, j := range jobs {
		if j.ID == jobID {
			return j, true, nil
		}
	}
	return Job{}, false, nil
}

func (a *At) fail(op string, err error, stderr []byte) error {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return fmt.Errorf("%w: at %s: %v", ErrScheduler, op, err)
	}
	return fmt.Errorf("%w: at %s: %v: %s", ErrScheduler, op, err, msg)
}

// parseJobID finds "job <n> at <when>" in at's diagnostics.
func parseJobID(out []byte) (int, bool) {
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		for i := 0; i+1 < len(fields); i++ {
			if fields[i] != "job" {
				continue
			}
			if id, err := strconv.Atoi(fields[i+1]); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

// parseQueue reads `at -l` lines: "<id>\t<weekday> <month> <day> <hh:mm:ss> <year> [queue] [user]".
func parseQueue(out []byte) []Job {
	var jobs []Job
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		job := Job{ID: id}
		end := min(len(fields), 6)
		job.When = strings.Join(fields[1:end], " ")
		if len(fields) > 6 {
			job.Queue = fields[6]
		}
		if len(fields) > 7 {
			job.User = fields[7]
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// BuildCommand renders a shell command line for at, quoting each word.
func BuildCommand(words ...string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = shellQuote(w)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:@+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
