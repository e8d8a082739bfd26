package transfer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/harun/telsh/internal/metrics"
	"github.com/harun/telsh/internal/shell"
)

// jobIDAlphabet keeps job IDs easy to type from a phone keyboard.
const (
	jobIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	jobIDLength   = 8
)

// Job is one running remote-copy invocation.
type Job struct {
	ID        string
	ChatID    int64
	Args      string
	StartedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// Config wires a Runner's collaborators.
type Config struct {
	Binary       string        // remote copy binary, e.g. rclone
	EditInterval time.Duration // minimum time between progress edits
	Messenger    shell.Messenger
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Runner launches remote-copy jobs and streams their progress into chat,
// editing one message per job instead of flooding the conversation.
type Runner struct {
	binary       string
	editInterval time.Duration
	messenger    shell.Messenger
	metrics      *metrics.Metrics
	logger       zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRunner creates a runner with no jobs.
func NewRunner(cfg Config) *Runner {
	binary := cfg.Binary
	if binary == "" {
		binary = "rclone"
	}
	interval := cfg.EditInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{
		binary:       binary,
		editInterval: interval,
		messenger:    cfg.Messenger,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("module", "transfer").Logger(),
		jobs:         make(map[string]*Job),
	}
}

// Start launches one job and returns its ID. The job runs until the copy
// finishes or Cancel is called; progress lands in chatID.
func (r *Runner) Start(chatID int64, rawArgs string) (string, error) {
	args := strings.Fields(rawArgs)
	if len(args) == 0 {
		return "", fmt.Errorf("no arguments given")
	}

	id, err := gonanoid.Generate(jobIDAlphabet, jobIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate job id: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        id,
		ChatID:    chatID,
		Args:      rawArgs,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.jobs[id] = job
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.TransfersActive.Inc()
	}
	r.logger.Info().Str("job_id", id).Str("args", rawArgs).Msg("Transfer started")

	go r.run(ctx, job, args)

	return id, nil
}

// Cancel stops a running job. Returns false when no such job exists.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	job.cancel()
	return true
}

// Active returns the IDs of running jobs.
func (r *Runner) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	return ids
}

// Wait blocks until the job finishes. Used in tests.
func (r *Runner) Wait(jobID string) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	r.mu.Unlock()
	if ok {
		<-job.done
	}
}

// Shutdown cancels every running job.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	for _, job := range jobs {
		job.cancel()
		<-job.done
	}
}

func (r *Runner) run(ctx context.Context, job *Job, args []string) {
	defer close(job.done)
	defer func() {
		r.mu.Lock()
		delete(r.jobs, job.ID)
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.TransfersActive.Dec()
		}
	}()

	// -P makes rclone emit the stats block we parse
	cmd := exec.CommandContext(ctx, r.binary, append(args, "-P")...)

	// rclone writes both the -P stats block and its errors to stderr
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.finish(job, "failed", fmt.Sprintf("transfer %s failed: %v", job.ID, err))
		return
	}

	if err := cmd.Start(); err != nil {
		r.finish(job, "failed", fmt.Sprintf("transfer %s failed: %v", job.ID, err))
		return
	}

	messageID, sendErr := r.messenger.SendCode(job.ChatID,
		fmt.Sprintf("transfer %s\n[%s] starting", job.ID, strings.Repeat("░", 10)))
	if sendErr != nil {
		r.logger.Warn().Err(sendErr).Str("job_id", job.ID).Msg("progress message failed")
	}

	limiter := rate.NewLimiter(rate.Every(r.editInterval), 1)
	detail := r.streamProgress(job, stderr, messageID, limiter)

	err = cmd.Wait()
	elapsed := time.Since(job.StartedAt).Round(time.Second)

	switch {
	case ctx.Err() != nil:
		r.finish(job, "cancelled", fmt.Sprintf("transfer %s cancelled after %s", job.ID, elapsed))
	case err != nil:
		r.finish(job, "failed", strings.TrimSpace(
			fmt.Sprintf("transfer %s failed after %s\n%s", job.ID, elapsed, detail)))
	default:
		r.finish(job, "ok", fmt.Sprintf("transfer %s done in %s", job.ID, elapsed))
	}
}

// streamProgress re-renders the progress message as samples arrive and
// returns the last non-progress line seen, which on failure is rclone's
// error message. rclone redraws its stats in place, so lines are split
// on both \n and \r.
func (r *Runner) streamProgress(job *Job, out io.Reader, messageID int, limiter *rate.Limiter) string {
	scanner := bufio.NewScanner(out)
	scanner.Split(scanCRLines)

	var last string
	for scanner.Scan() {
		progress, ok := ParseProgress(scanner.Text())
		if !ok {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				last = line
			}
			continue
		}
		if messageID == 0 || !limiter.Allow() {
			continue
		}
		if err := r.messenger.EditCode(job.ChatID, messageID, progress.Render(job.ID)); err != nil {
			r.logger.Debug().Err(err).Str("job_id", job.ID).Msg("progress edit failed")
		}
	}
	return last
}

// finish reports the outcome as a fresh message so it never races a
// throttled progress edit.
func (r *Runner) finish(job *Job, status, text string) {
	if r.metrics != nil {
		r.metrics.TransfersTotal.WithLabelValues(status).Inc()
	}
	r.logger.Info().Str("job_id", job.ID).Str("status", status).Msg("Transfer finished")
	if _, err := r.messenger.SendCode(job.ChatID, text); err != nil {
		r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("final message failed")
	}
}

// scanCRLines is bufio.ScanLines that also treats \r as a terminator.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
