package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pvv/api/models"
	"pvv/api/models/constants"
	assemblyId "pvv/api/models/constants/assembly-id"
	"pvv/api/models/ingest"
	"pvv/api/services/annotation"
	"pvv/api/services/vcf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingAnnotator struct {
	*recordingAnnotator
	release chan struct{}
}

func (b *blockingAnnotator) Annotate(ctx context.Context, variants []models.Variant, sources []constants.AnnotationSource) (*annotation.BatchResult, error) {
	<-b.release
	return b.recordingAnnotator.Annotate(ctx, variants, sources)
}

func newTestIngestionService(t *testing.T, annotator Annotator) (*IngestionService, string) {
	t.Helper()

	dir := t.TempDir()
	writeVcf(t, dir, "Patient1.vcf", validVcf)

	store := newPipelineStore(t)
	if annotator == nil {
		annotator = &recordingAnnotator{store: store}
	}
	if b, ok := annotator.(*blockingAnnotator); ok {
		b.store = store
	}

	cfg := models.DefaultConfig()
	cfg.Api.VcfPath = dir
	cfg.Api.FileProcessingConcurrencyLevel = 2

	ctx, cancel := context.WithCancel(context.Background())
	iz := NewIngestionService(ctx, NewPipeline(store, annotator, nil, assemblyId.GRCh38, nil, nil), &cfg, nil)
	t.Cleanup(func() {
		cancel()
		iz.Wait()
	})
	return iz, dir
}

func TestSubmitRunsLoadInBackground(t *testing.T) {
	iz, _ := newTestIngestionService(t, nil)

	request, err := iz.Submit("Patient1.vcf", false, false)
	require.NoError(t, err)
	assert.Equal(t, ingest.Queued, request.State)

	iz.Wait()
	assert.Eventually(t, func() bool {
		r, ok := iz.GetRequest(request.Id.String())
		return ok && r.State == ingest.Done
	}, time.Second, 10*time.Millisecond)

	requests := iz.GetRequests()
	require.Len(t, requests, 1)
	assert.NotEmpty(t, requests[0].BatchId)
	assert.Contains(t, requests[0].Message, "new 3")
}

func TestSubmitRejectsBadFiles(t *testing.T) {
	iz, _ := newTestIngestionService(t, nil)

	_, err := iz.Submit("controls.vcf", false, false)
	assert.True(t, errors.Is(err, vcf.ErrNamingConvention))

	_, err = iz.Submit("Patient2.vcf", false, false)
	assert.True(t, errors.Is(err, vcf.ErrFileUnreadable))

	// path components are stripped before resolving against the input directory
	_, err = iz.Submit("../../Patient2.vcf", false, false)
	assert.True(t, errors.Is(err, vcf.ErrFileUnreadable))

	assert.Empty(t, iz.GetRequests())
}

func TestSubmitRejectsDuplicateWhileRunning(t *testing.T) {
	annotator := &blockingAnnotator{recordingAnnotator: &recordingAnnotator{}, release: make(chan struct{})}
	iz, _ := newTestIngestionService(t, annotator)

	first, err := iz.Submit("Patient1.vcf", false, false)
	require.NoError(t, err)

	_, err = iz.Submit("Patient1.vcf", true, false)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	close(annotator.release)
	iz.Wait()
	assert.Eventually(t, func() bool {
		r, _ := iz.GetRequest(first.Id.String())
		return r.State == ingest.Done
	}, time.Second, 10*time.Millisecond)

	_, err = iz.Submit("Patient1.vcf", true, false)
	assert.NoError(t, err)
}

func TestConcurrentSubmitsAcceptOne(t *testing.T) {
	annotator := &blockingAnnotator{recordingAnnotator: &recordingAnnotator{}, release: make(chan struct{})}
	iz, _ := newTestIngestionService(t, annotator)

	var (
		wg       sync.WaitGroup
		accepted int32
		rejected int32
	)
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := iz.Submit("Patient1.vcf", false, false)
			switch {
			case err == nil:
				atomic.AddInt32(&accepted, 1)
			case errors.Is(err, ErrAlreadyRunning):
				atomic.AddInt32(&rejected, 1)
			default:
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&accepted))
	assert.Equal(t, int32(7), atomic.LoadInt32(&rejected))
	assert.Len(t, iz.GetRequests(), 1)

	close(annotator.release)
	iz.Wait()
}
