package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pvv/api/models"
	"pvv/api/models/ingest"

	"gorm.io/gorm"
)

func (s *Store) CreateBatch(ctx context.Context, b *models.LoadBatch) error {
	b.State = ingest.Running
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now().UTC()
	}
	return s.DB.WithContext(ctx).Omit("LineErrors").Create(b).Error
}

// FinalizeBatch records the final counters and state of a running batch.
// A batch is finalized once and is immutable afterwards.
func (s *Store) FinalizeBatch(ctx context.Context, b *models.LoadBatch) error {
	finishedAt := time.Now().UTC()

	res := s.DB.WithContext(ctx).
		Model(&models.LoadBatch{}).
		Where("id = ? AND state = ?", b.ID, ingest.Running).
		Updates(map[string]interface{}{
			"state":        b.State,
			"seen":         b.Seen,
			"new":          b.New,
			"skipped":      b.Skipped,
			"parse_errors": b.ParseErrors,
			"message":      b.Message,
			"summary":      b.Summary,
			"finished_at":  finishedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("finalizing batch %s: %w", b.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("batch %s: %w", b.ID, ErrBatchFinalized)
	}

	b.FinishedAt = &finishedAt
	return nil
}

// FindDoneBatchByDigest returns the latest completed batch for the file contents
func (s *Store) FindDoneBatchByDigest(ctx context.Context, digest string) (*models.LoadBatch, error) {
	var b models.LoadBatch
	err := s.DB.WithContext(ctx).
		Preload("LineErrors", func(db *gorm.DB) *gorm.DB { return db.Order("line") }).
		Where("digest = ? AND state = ?", digest, ingest.Done).
		Order("started_at DESC").
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("batch with digest %s: %w", digest, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*models.LoadBatch, error) {
	var b models.LoadBatch
	err := s.DB.WithContext(ctx).
		Preload("LineErrors", func(db *gorm.DB) *gorm.DB { return db.Order("line") }).
		Where("id = ?", id).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) GetBatches(ctx context.Context, limit int, offset int) ([]models.LoadBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.LoadBatch
	err := s.DB.WithContext(ctx).Order("started_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}

func (s *Store) SaveParseErrors(ctx context.Context, batchId string, lineErrors []models.ParseError) error {
	if len(lineErrors) == 0 {
		return nil
	}
	for i := range lineErrors {
		lineErrors[i].BatchId = batchId
	}
	return s.DB.WithContext(ctx).CreateInBatches(lineErrors, 100).Error
}
