package sqlite

import (
	"context"
	"errors"
	"testing"

	"pvv/api/models"
	"pvv/api/models/ingest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &models.LoadBatch{
		ID:        uuid.NewString(),
		FileName:  "Patient1.vcf",
		Digest:    "abc123",
		PatientId: "1",
	}
	require.NoError(t, s.CreateBatch(ctx, b))
	assert.Equal(t, ingest.Running, b.State)

	_, err := s.FindDoneBatchByDigest(ctx, "abc123")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.SaveParseErrors(ctx, b.ID, []models.ParseError{
		{Line: 7, Reason: "invalid position", Text: "4\tabc"},
		{Line: 3, Reason: "invalid chromosome", Text: "chr99\t1"},
	}))

	b.State = ingest.Done
	b.Seen, b.New, b.Skipped, b.ParseErrors = 3, 2, 1, 2
	require.NoError(t, s.FinalizeBatch(ctx, b))
	assert.NotNil(t, b.FinishedAt)

	// finalized batches are immutable
	b.Seen = 99
	assert.True(t, errors.Is(s.FinalizeBatch(ctx, b), ErrBatchFinalized))

	stored, err := s.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, ingest.Done, stored.State)
	assert.Equal(t, 3, stored.Seen)
	assert.Equal(t, 2, stored.New)
	require.Len(t, stored.LineErrors, 2)
	assert.Equal(t, 3, stored.LineErrors[0].Line)

	done, err := s.FindDoneBatchByDigest(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, b.ID, done.ID)

	all, err := s.GetBatches(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResetDropsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustUpsert(t, s, newVariant("1", "4", 100, "A", "G"))
	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Ready(ctx))

	var count int64
	require.NoError(t, s.DB.Model(&models.Variant{}).Count(&count).Error)
	assert.Zero(t, count)
}
