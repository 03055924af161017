package sanitation

import (
	"context"
	"sync"
	"time"

	"pvv/api/models"
	"pvv/api/models/constants"
	"pvv/api/services/annotation"
	"pvv/api/utils/logger"

	"github.com/go-co-op/gocron"
)

type (
	Refresher interface {
		AnnotateOutstanding(ctx context.Context, patientId string, sources []constants.AnnotationSource) (*annotation.BatchResult, error)
	}

	// SanitationService periodically re-annotates variants that are still
	// missing an ok annotation, e.g. after a source outage
	SanitationService struct {
		Initialized bool
		Refresher   Refresher
		Interval    time.Duration

		mux       sync.Mutex
		scheduler *gocron.Scheduler
		lastRun   *annotation.BatchResult
		log       *logger.Logger
	}
)

func NewSanitationService(refresher Refresher, cfg *models.Config, log *logger.Logger) *SanitationService {
	if log == nil {
		log = logger.NewNop()
	}

	ss := &SanitationService{
		Initialized: false,
		Refresher:   refresher,
		Interval:    cfg.Annotation.RefreshInterval,
		log:         log,
	}

	return ss
}

// Init starts the scheduler; the job stops with ctx. A zero interval
// disables the refresh.
func (ss *SanitationService) Init(ctx context.Context) error {
	ss.mux.Lock()
	defer ss.mux.Unlock()

	if ss.Initialized || ss.Interval <= 0 {
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(ss.Interval).WaitForSchedule().Do(func() {
		ss.refresh(ctx)
	})
	if err != nil {
		return err
	}

	s.StartAsync()
	ss.scheduler = s
	ss.Initialized = true

	go func() {
		<-ctx.Done()
		ss.Stop()
	}()

	ss.log.Info("refresh scheduler started", "interval", ss.Interval.String())
	return nil
}

func (ss *SanitationService) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	ss.log.Info("re-annotating outstanding variants")
	result, err := ss.Refresher.AnnotateOutstanding(ctx, "", nil)
	if err != nil {
		ss.log.Error("refresh failed", "error", err)
		return
	}

	ss.mux.Lock()
	ss.lastRun = result
	ss.mux.Unlock()

	ss.log.Info("refresh finished", "variants", result.Variants, "failed", len(result.FailedVariantKeys), "stopped", result.Stopped)
}

// RunNow triggers the refresh outside of the schedule
func (ss *SanitationService) RunNow(ctx context.Context) *annotation.BatchResult {
	ss.refresh(ctx)
	return ss.LastRun()
}

func (ss *SanitationService) LastRun() *annotation.BatchResult {
	ss.mux.Lock()
	defer ss.mux.Unlock()
	return ss.lastRun
}

func (ss *SanitationService) Stop() {
	ss.mux.Lock()
	defer ss.mux.Unlock()

	if ss.scheduler != nil {
		ss.scheduler.Stop()
		ss.scheduler = nil
	}
}
