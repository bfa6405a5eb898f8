package cronjobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSchedule = "*/10 * * * *"

// Job is one detection pass.
type Job func(ctx context.Context) error

// Scheduler runs the detection job on a cron schedule and on demand. Bursts of
// Trigger calls coalesce: at most one run is in flight and at most one is pending.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	timeout time.Duration
	logger  *zap.Logger

	pending chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewScheduler(job Job, timeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		job:     job,
		timeout: timeout,
		logger:  logger,
		pending: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Schedule registers the periodic re-scan. An empty spec uses DefaultSchedule.
func (s *Scheduler) Schedule(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("CronJob: outbreak detection due")
		s.Trigger()
	})
	if err != nil {
		s.logger.Error("Error scheduling outbreak detection", zap.String("spec", spec), zap.Error(err))
		return err
	}
	return nil
}

// Trigger asks for a run without blocking. If a run is already pending the call is a no-op.
func (s *Scheduler) Trigger() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting cron jobs")
	s.wg.Add(1)
	go s.loop()
	s.cron.Start()
}

// Stop halts the cron and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		<-s.cron.Stop().Done()
		close(s.stop)
		s.wg.Wait()
	})
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-s.pending:
			s.run()
		}
	}
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("Outbreak detection failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	s.logger.Info("Outbreak detection finished", zap.Duration("elapsed", time.Since(start)))
}
