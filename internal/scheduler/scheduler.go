package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrRunInProgress is returned by TriggerNow while another run holds the slot
	ErrRunInProgress = errors.New("reminder processing is already running")
	// ErrAlreadyStarted is returned by Start on a running scheduler
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Runner is the processing entry point the scheduler drives
type Runner interface {
	ProcessReminders(ctx context.Context) error
}

// Config holds the schedule settings
type Config struct {
	TimeOfDay    string // HH:MM, 24h
	Timezone     string // IANA zone name
	RunOnStartup bool
}

// Scheduler fires the runner once a day and on demand. Scheduled and
// manual runs share a single slot, so at most one run is active at a time.
type Scheduler struct {
	runner Runner
	cfg    Config
	loc    *time.Location
	spec   string

	slot *semaphore.Weighted

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// New validates the config and creates a stopped Scheduler
func New(runner Runner, cfg Config) (*Scheduler, error) {
	if cfg.TimeOfDay == "" {
		cfg.TimeOfDay = "08:00"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Jakarta"
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	at, err := time.Parse("15:04", cfg.TimeOfDay)
	if err != nil {
		return nil, fmt.Errorf("invalid time of day %q: %w", cfg.TimeOfDay, err)
	}

	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		loc:    loc,
		spec:   fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour()),
		slot:   semaphore.NewWeighted(1),
	}, nil
}

// Location returns the timezone the schedule is evaluated in
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Start registers the daily trigger
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	log.Println("Starting scheduler service...")

	// runs from a previous Start/Stop cycle are abandoned
	if s.cancel != nil {
		s.cancel()
	}

	c := cron.New(cron.WithLocation(s.loc))
	ctx, cancel := context.WithCancel(context.Background())
	id, err := c.AddFunc(s.spec, func() { s.runScheduled(ctx) })
	if err != nil {
		cancel()
		return fmt.Errorf("failed to register schedule %q: %w", s.spec, err)
	}
	c.Start()

	s.cron = c
	s.entryID = id
	s.ctx = ctx
	s.cancel = cancel

	log.Printf("Scheduler started - will run daily at %s (%s)", s.cfg.TimeOfDay, s.cfg.Timezone)

	if s.cfg.RunOnStartup {
		log.Println("Running reminder check immediately on startup...")
		go s.runScheduled(ctx)
	}
	return nil
}

// Stop cancels the daily trigger. A run already in progress is not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.entryID = 0
	log.Println("Scheduler service stopped")
}

// Shutdown stops the trigger and waits for an in-flight run to release the
// slot, or gives up when ctx is done. The in-flight run's context is
// cancelled only if ctx expires first.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()
	if err := s.slot.Acquire(ctx, 1); err != nil {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		return fmt.Errorf("waiting for in-flight run: %w", err)
	}
	s.slot.Release(1)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	return nil
}

// NextRun returns the next scheduled firing, or the zero time when stopped
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// TriggerNow runs the entry point synchronously without touching the schedule
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if !s.slot.TryAcquire(1) {
		return ErrRunInProgress
	}
	defer s.slot.Release(1)

	log.Println("Manually triggering reminder check...")
	return s.run(ctx)
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if !s.slot.TryAcquire(1) {
		log.Println("[Scheduler] Previous reminder run still in progress, skipping this firing")
		return
	}
	defer s.slot.Release(1)

	log.Printf("[%s] Running scheduled reminder check...", time.Now().In(s.loc).Format(time.RFC3339))
	if err := s.run(ctx); err != nil {
		log.Printf("[Scheduler] Error running scheduled task: %v", err)
	}
}

// run calls the runner, turning a panic into an error
func (s *Scheduler) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reminder run panicked: %v", r)
		}
	}()
	return s.runner.ProcessReminders(ctx)
}
