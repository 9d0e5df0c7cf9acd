// Package scheduler runs independent periodic tasks, each on its own
// goroutine, and records a structured outcome for every run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/models"
)

// ErrSkip marks a run that had nothing to do. Wrap it to give a reason.
var ErrSkip = errors.New("skipped")

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrNotManual   = errors.New("task only runs on its schedule")
	ErrNotRunning  = errors.New("scheduler is not running")
)

type Task struct {
	Name     string
	Schedule Schedule
	// InitialDelay overrides the first wait; zero means wait for the
	// schedule's first slot.
	InitialDelay time.Duration
	Timeout      time.Duration
	// Manual allows Trigger to start the task off-schedule.
	Manual bool
	Run    func(ctx context.Context) error
}

type Result struct {
	Task      string             `json:"task"`
	Outcome   models.TaskOutcome `json:"outcome"`
	Error     string             `json:"error,omitempty"`
	StartedAt time.Time          `json:"startedAt"`
	Duration  time.Duration      `json:"duration"`
}

type Scheduler struct {
	tasks    []Task
	onResult func(Result)
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    map[string]Result
}

// New builds a scheduler. onResult, when set, is called after every run.
func New(onResult func(Result), tasks ...Task) *Scheduler {
	for i := range tasks {
		if tasks[i].Timeout <= 0 {
			tasks[i].Timeout = 10 * time.Minute
		}
	}
	return &Scheduler{
		tasks:    tasks,
		onResult: onResult,
		log:      logx.Named("scheduler"),
		last:     make(map[string]Result),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("scheduler.already_running")
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx
	s.mu.Unlock()

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
		s.log.Info("task.scheduled",
			zap.String("task", t.Name),
			zap.Stringer("schedule", t.Schedule),
			zap.Duration("initialDelay", t.InitialDelay))
	}
}

// Stop cancels every task loop and triggered run, then waits for them to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler.stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow runs a task synchronously on the caller's context, regardless of
// its Manual flag.
func (s *Scheduler) RunNow(ctx context.Context, name string) (Result, error) {
	t, ok := s.task(name)
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrUnknownTask, name)
	}
	return s.execute(ctx, t), nil
}

// Trigger starts a Manual task in the background. The run belongs to the
// scheduler: Stop cancels it and waits for it like a scheduled run.
func (s *Scheduler) Trigger(name string) error {
	t, ok := s.task(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownTask, name)
	}
	if !t.Manual {
		return fmt.Errorf("%w: %s", ErrNotManual, name)
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Info("task.manual", zap.String("task", name))
	go func() {
		defer s.wg.Done()
		s.execute(ctx, t)
	}()
	return nil
}

func (s *Scheduler) task(name string) (Task, bool) {
	for _, t := range s.tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}

// Tasks lists the registered task names in registration order.
func (s *Scheduler) Tasks() []string {
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	return names
}

// LastResults returns the most recent result of every task that has run.
func (s *Scheduler) LastResults() map[string]Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Result, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	now := time.Now()
	due := t.Schedule.Next(now)
	if t.InitialDelay > 0 {
		due = now.Add(t.InitialDelay)
	}

	timer := time.NewTimer(time.Until(due))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.execute(ctx, t)

			now := time.Now()
			due = t.Schedule.Next(due)
			if !due.After(now) {
				due = t.Schedule.Next(now)
			}
			timer.Reset(time.Until(due))
		}
	}
}

func (s *Scheduler) execute(parent context.Context, t Task) (res Result) {
	res = Result{Task: t.Name, StartedAt: time.Now()}

	ctx, cancel := context.WithTimeout(parent, t.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = models.OutcomeError
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		res.Duration = time.Since(res.StartedAt)
		s.record(res)
	}()

	err := t.Run(ctx)
	switch {
	case err == nil:
		res.Outcome = models.OutcomeSuccess
	case errors.Is(err, ErrSkip), errors.Is(err, models.ErrCycleInProgress):
		res.Outcome = models.OutcomeSkip
		res.Error = err.Error()
	default:
		res.Outcome = models.OutcomeError
		res.Error = err.Error()
	}
	return res
}

func (s *Scheduler) record(res Result) {
	s.mu.Lock()
	s.last[res.Task] = res
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("task", res.Task),
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("duration", res.Duration),
	}
	switch res.Outcome {
	case models.OutcomeError:
		s.log.Error("task.completed", append(fields, zap.String("error", res.Error))...)
	case models.OutcomeSkip:
		s.log.Info("task.completed", append(fields, zap.String("reason", res.Error))...)
	default:
		s.log.Info("task.completed", fields...)
	}

	if s.onResult != nil {
		s.onResult(res)
	}
}
