package sanitation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"pvv/api/models"
	"pvv/api/models/constants"
	"pvv/api/services/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls int32
}

func (c *countingRefresher) AnnotateOutstanding(ctx context.Context, patientId string, sources []constants.AnnotationSource) (*annotation.BatchResult, error) {
	n := atomic.AddInt32(&c.calls, 1)
	return &annotation.BatchResult{Variants: int(n), FailedVariantKeys: []string{}}, nil
}

func TestRefreshRunsOnSchedule(t *testing.T) {
	refresher := &countingRefresher{}
	cfg := models.DefaultConfig()
	cfg.Annotation.RefreshInterval = 20 * time.Millisecond

	ss := NewSanitationService(refresher, &cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ss.Init(ctx))
	require.NoError(t, ss.Init(ctx))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&refresher.calls) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotNil(t, ss.LastRun())

	ss.Stop()
	after := atomic.LoadInt32(&refresher.calls)
	time.Sleep(60 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&refresher.calls), after+1)
}

func TestRefreshDisabled(t *testing.T) {
	refresher := &countingRefresher{}
	cfg := models.DefaultConfig()
	cfg.Annotation.RefreshInterval = 0

	ss := NewSanitationService(refresher, &cfg, nil)
	require.NoError(t, ss.Init(context.Background()))
	assert.False(t, ss.Initialized)

	result := ss.RunNow(context.Background())
	require.NotNil(t, result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.calls))
}
