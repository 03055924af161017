package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"pvv/api/models"
	"pvv/api/models/ingest"
	"pvv/api/services/vcf"
	"pvv/api/utils/logger"

	"github.com/google/uuid"
)

var ErrAlreadyRunning = errors.New("file is already queued or loading")

type (
	// IngestionService runs web-triggered loads in the background and keeps
	// track of their requests
	IngestionService struct {
		Initialized                  bool
		Pipeline                     *Pipeline
		VcfPath                      string
		LoadRequestChan              chan *ingest.LoadRequest
		LoadRequestMap               map[string]*ingest.LoadRequest
		LoadRequestMapMux            sync.RWMutex
		ConcurrentFileIngestionQueue chan bool

		ctx     context.Context
		loads   sync.WaitGroup
		stopped chan struct{}
		log     *logger.Logger
	}
)

func NewIngestionService(ctx context.Context, pipeline *Pipeline, cfg *models.Config, log *logger.Logger) *IngestionService {
	if log == nil {
		log = logger.NewNop()
	}

	concurrency := cfg.Api.FileProcessingConcurrencyLevel
	if concurrency < 1 {
		concurrency = 1
	}

	iz := &IngestionService{
		Initialized:                  false,
		Pipeline:                     pipeline,
		VcfPath:                      cfg.Api.VcfPath,
		LoadRequestChan:              make(chan *ingest.LoadRequest),
		LoadRequestMap:               map[string]*ingest.LoadRequest{},
		LoadRequestMapMux:            sync.RWMutex{},
		ConcurrentFileIngestionQueue: make(chan bool, concurrency),
		ctx:                          ctx,
		stopped:                      make(chan struct{}),
		log:                          log,
	}

	iz.Init()

	return iz
}

func (i *IngestionService) Init() {
	// safeguard to prevent multiple initilizations
	if !i.Initialized {
		// listener for load request updates
		go func() {
			defer close(i.stopped)
			for {
				select {
				case request := <-i.LoadRequestChan:
					if request.State == ingest.Queued {
						i.log.Info("queueing a new load request", "file", request.Filename, "id", request.Id)
					}

					request.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
					i.LoadRequestMapMux.Lock()
					i.LoadRequestMap[request.Id.String()] = request
					i.LoadRequestMapMux.Unlock()

				case <-i.ctx.Done():
					return
				}
			}
		}()

		i.Initialized = true
	}
}

func (i *IngestionService) publish(request ingest.LoadRequest) {
	select {
	case i.LoadRequestChan <- &request:
	case <-i.stopped:
	}
}

// Submit queues a background load of a file from the input directory
func (i *IngestionService) Submit(fileName string, force bool, retryOutstanding bool) (*ingest.LoadRequest, error) {
	base := filepath.Base(fileName)
	if _, err := vcf.PatientIdFromFileName(base); err != nil {
		return nil, err
	}

	path := filepath.Join(i.VcfPath, base)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", vcf.ErrFileUnreadable, base)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	request := ingest.LoadRequest{
		Id:        uuid.New(),
		Filename:  base,
		State:     ingest.Queued,
		Force:     force,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// checked and registered under one lock so a duplicate submission sees it
	i.LoadRequestMapMux.Lock()
	if i.filenameAlreadyRunning(base) {
		i.LoadRequestMapMux.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, base)
	}
	stored := request
	i.LoadRequestMap[request.Id.String()] = &stored
	i.LoadRequestMapMux.Unlock()

	i.loads.Add(1)
	go func(request ingest.LoadRequest) {
		defer i.loads.Done()

		select {
		case i.ConcurrentFileIngestionQueue <- true:
		case <-i.ctx.Done():
			request.State = ingest.Error
			request.Message = "service stopped before the load started"
			i.publish(request)
			return
		}
		defer func() { <-i.ConcurrentFileIngestionQueue }()

		request.State = ingest.Running
		i.publish(request)

		batch, err := i.Pipeline.Run(i.ctx, path, PipelineOptions{Force: request.Force, RetryOutstanding: retryOutstanding})
		if batch != nil {
			request.BatchId = batch.ID
		}
		if err != nil {
			request.State = ingest.Error
			request.Message = err.Error()
		} else {
			request.State = ingest.Done
			request.Message = fmt.Sprintf("seen %d, new %d, skipped %d, parse errors %d", batch.Seen, batch.New, batch.Skipped, batch.ParseErrors)
		}
		i.publish(request)
	}(request)

	return &request, nil
}

// GetRequests returns copies of every known request, oldest first
func (i *IngestionService) GetRequests() []ingest.LoadRequest {
	i.LoadRequestMapMux.RLock()
	defer i.LoadRequestMapMux.RUnlock()

	out := make([]ingest.LoadRequest, 0, len(i.LoadRequestMap))
	for _, r := range i.LoadRequestMap {
		out = append(out, *r)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt == out[b].CreatedAt {
			return out[a].Filename < out[b].Filename
		}
		return out[a].CreatedAt < out[b].CreatedAt
	})
	return out
}

func (i *IngestionService) GetRequest(id string) (ingest.LoadRequest, bool) {
	i.LoadRequestMapMux.RLock()
	defer i.LoadRequestMapMux.RUnlock()

	r, ok := i.LoadRequestMap[id]
	if !ok {
		return ingest.LoadRequest{}, false
	}
	return *r, true
}

func (i *IngestionService) FilenameAlreadyRunning(filename string) bool {
	i.LoadRequestMapMux.RLock()
	defer i.LoadRequestMapMux.RUnlock()
	return i.filenameAlreadyRunning(filename)
}

// callers hold LoadRequestMapMux
func (i *IngestionService) filenameAlreadyRunning(filename string) bool {
	for _, v := range i.LoadRequestMap {
		if v.Filename == filename && (v.State == ingest.Queued || v.State == ingest.Running) {
			return true
		}
	}
	return false
}

// Wait blocks until every submitted load has finished
func (i *IngestionService) Wait() {
	i.loads.Wait()
}
