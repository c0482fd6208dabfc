package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"set_and_wait/internal/logger"
	"set_and_wait/internal/models"
)

// Job states.
const (
	JobIdle       = "idle"
	JobPrinting   = "printing"
	JobHolding    = "holding" // printing, blocked in a wait
	JobCancelling = "cancelling"
	JobDone       = "done"
	JobCancelled  = "cancelled"
	JobFailed     = "failed"
)

var (
	ErrJobRunning = errors.New("a job is already running")
	ErrNoJob      = errors.New("no job is running")
)

// JobStatus describes the current or last job.
type JobStatus struct {
	Name       string    `json:"name,omitempty"`
	State      string    `json:"state"`
	LinesSent  int       `json:"lines_sent"`
	Waits      int       `json:"waits"`
	LastError  string    `json:"last_error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// JobService streams a command file through the pipeline, one job at a time.
type JobService struct {
	commands Commands
	events   Events
	log      *logger.Logger

	mu     sync.Mutex
	status JobStatus
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJobService(commands Commands, events Events, log *logger.Logger) *JobService {
	if log == nil {
		log = logger.Nop()
	}
	return &JobService{
		commands: commands,
		events:   events,
		log:      log,
		status:   JobStatus{State: JobIdle},
	}
}

// Start begins streaming r in the background.
func (j *JobService) Start(ctx context.Context, name string, r io.Reader) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.State == JobPrinting || j.status.State == JobCancelling {
		return ErrJobRunning
	}

	runCtx, cancel := context.WithCancel(WithActor(context.WithoutCancel(ctx), models.JobActor(name)))
	j.cancel = cancel
	j.done = make(chan struct{})
	j.status = JobStatus{Name: name, State: JobPrinting, StartedAt: time.Now().UTC()}

	j.events.Publish(HostPrintStarted)
	go j.run(runCtx, r, j.done)
	return nil
}

// Cancel stops the running job and aborts any wait it is blocked in.
func (j *JobService) Cancel() error {
	j.mu.Lock()
	if j.status.State != JobPrinting {
		j.mu.Unlock()
		return ErrNoJob
	}
	j.status.State = JobCancelling
	cancel := j.cancel
	j.mu.Unlock()

	j.events.Publish(HostPrintCancelling)
	cancel()
	return nil
}

// Cancelling reports whether the running job is being cancelled.
func (j *JobService) Cancelling() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.State == JobCancelling
}

// Status returns a copy of the job status.
func (j *JobService) Status() JobStatus {
	j.mu.Lock()
	st := j.status
	j.mu.Unlock()
	if st.State == JobPrinting && j.commands.Holding() {
		st.State = JobHolding
	}
	return st
}

// Wait blocks until the current job goroutine exits or ctx is done.
func (j *JobService) Wait(ctx context.Context) {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (j *JobService) run(ctx context.Context, r io.Reader, done chan struct{}) {
	defer close(done)

	sc := bufio.NewScanner(r)
	var runErr error
	for sc.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := stripLine(sc.Text())
		if line == "" {
			continue
		}
		res, err := j.commands.Send(ctx, line)
		if err != nil && !res.Waited {
			runErr = err
			break
		}
		if err != nil {
			// a failed wait degrades to "not reached"; keep streaming
			j.log.Errorw("job_wait_failed", "line", line, "err", err)
		}
		j.mu.Lock()
		if res.Forwarded != "" {
			j.status.LinesSent++
		}
		if res.Waited {
			j.status.Waits++
		}
		j.mu.Unlock()
	}
	if runErr == nil {
		runErr = sc.Err()
	}

	j.finish(ctx, runErr)
}

func (j *JobService) finish(ctx context.Context, runErr error) {
	j.mu.Lock()
	j.status.FinishedAt = time.Now().UTC()
	switch {
	case j.status.State == JobCancelling || errors.Is(ctx.Err(), context.Canceled):
		j.status.State = JobCancelled
	case runErr != nil:
		j.status.State = JobFailed
		j.status.LastError = runErr.Error()
	default:
		j.status.State = JobDone
	}
	st := j.status
	j.mu.Unlock()

	j.log.Infow("job_finished", "name", st.Name, "state", st.State, "lines", st.LinesSent, "waits", st.Waits)
	switch st.State {
	case JobFailed:
		j.events.Publish(HostError)
	case JobDone:
		j.events.Publish(HostPrintDone)
	}
}
