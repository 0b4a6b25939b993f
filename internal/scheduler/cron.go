package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/controllers"
	"github.com/amaumene/storarr/internal/gate"
	"github.com/amaumene/storarr/internal/metrics"
	"github.com/amaumene/storarr/internal/tracing"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Task names
const (
	TaskLibraryScan     = "library-scan"
	TaskDownloadCheck   = "download-check"
	TaskWatchCollect    = "watch-collect"
	TaskTransitionSweep = "transition-sweep"
)

// ErrUnknownTask is returned by RunNow for a name that was never registered
var ErrUnknownTask = errors.New("unknown task")

// Task is one periodic background loop
type Task struct {
	Name     string
	Interval time.Duration
	// Delay postpones the first run after Start; zero waits for the first tick
	Delay time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler runs every task on its own interval. All task bodies share the
// gate, so at most one runs at a time.
type Scheduler struct {
	cron   *cron.Cron
	gate   *gate.Gate
	tasks  map[string]Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// New creates a scheduler with no tasks
func New(g *gate.Gate, logger zerolog.Logger) *Scheduler {
	logger = utils.WithComponent(logger, "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		gate:   g,
		tasks:  make(map[string]Task),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// NewScheduler creates the scheduler with the four lifecycle loops
func NewScheduler(
	cfg *config.Config,
	g *gate.Gate,
	libraryCtrl *controllers.LibraryController,
	downloadCtrl *controllers.DownloadController,
	watchCtrl *controllers.WatchController,
	transitionCtrl *controllers.TransitionController,
	logger zerolog.Logger,
) *Scheduler {
	s := New(g, logger)
	s.Register(Task{
		Name:     TaskLibraryScan,
		Interval: cfg.LibraryScanInterval,
		Delay:    cfg.LibraryScanDelay,
		Run: func(ctx context.Context) error {
			_, err := libraryCtrl.Scan(ctx)
			return err
		},
	})
	s.Register(Task{
		Name:     TaskDownloadCheck,
		Interval: cfg.DownloadCheckInterval,
		Run: func(ctx context.Context) error {
			_, err := downloadCtrl.CheckCompletedDownloads(ctx)
			return err
		},
	})
	s.Register(Task{
		Name:     TaskWatchCollect,
		Interval: cfg.WatchCheckInterval,
		Run: func(ctx context.Context) error {
			_, err := watchCtrl.CollectWatchActivity(ctx)
			return err
		},
	})
	s.Register(Task{
		Name:     TaskTransitionSweep,
		Interval: cfg.TransitionCheckInterval,
		Run: func(ctx context.Context) error {
			_, err := transitionCtrl.CheckAndProcessTransitions(ctx)
			return err
		},
	})
	return s
}

// Register adds a task. It must be called before Start.
func (s *Scheduler) Register(t Task) {
	s.tasks[t.Name] = t
}

// Tasks returns the registered task names, sorted
func (s *Scheduler) Tasks() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start schedules every task
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("Starting scheduler")

	for _, name := range s.Tasks() {
		task := s.tasks[name]
		if task.Interval <= 0 {
			return fmt.Errorf("task %s has no interval", name)
		}
		_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", task.Interval), func() {
			s.run(task)
		})
		if err != nil {
			return fmt.Errorf("failed to add %s job: %w", name, err)
		}
		s.logger.Info().Str("task", name).Dur("interval", task.Interval).Msg("Scheduled task")

		if task.Delay > 0 {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				select {
				case <-time.After(task.Delay):
					s.logger.Info().Str("task", task.Name).Msg("Running initial task after startup delay")
					s.run(task)
				case <-s.ctx.Done():
				}
			}()
		}
	}

	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")
	return nil
}

// Stop cancels every in-flight and waiting task and returns once they have exited
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow runs a task immediately through the gate on the caller's context
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	task, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}
	return s.execute(ctx, task)
}

// run executes a scheduled cycle on the scheduler's root context
func (s *Scheduler) run(task Task) {
	if s.ctx.Err() != nil {
		return
	}
	if err := s.execute(s.ctx, task); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Str("task", task.Name).Msg("Scheduled task failed")
	}
}

func (s *Scheduler) execute(ctx context.Context, task Task) (err error) {
	ctx, span := tracing.StartSpan(ctx, "cycle."+task.Name)
	start := time.Now()
	defer func() {
		tracing.SetSpanError(span, err)
		span.End()

		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.CycleDuration.WithLabelValues(task.Name).Observe(time.Since(start).Seconds())
		metrics.CycleTotal.WithLabelValues(task.Name, result).Inc()
	}()

	s.logger.Debug().Str("task", task.Name).Msg("Running scheduled task")
	if err := s.gate.Run(ctx, task.Name, task.Run); err != nil {
		return err
	}
	s.logger.Debug().Str("task", task.Name).Dur("took", time.Since(start)).Msg("Task completed")
	return nil
}

// cronLogger routes cron's own logging through zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
