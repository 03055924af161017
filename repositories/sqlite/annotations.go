package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pvv/api/models"
	"pvv/api/models/constants"
	annotationSource "pvv/api/models/constants/annotation-source"
	annotationStatus "pvv/api/models/constants/annotation-status"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnnotationCount struct {
	Source constants.AnnotationSource `json:"source"`
	Status constants.AnnotationStatus `json:"status"`
	Count  int64                      `json:"count"`
}

// AttachAnnotation writes the annotation for its (variant, source) pair in a
// single statement. ok and not_found always replace the stored row; an error
// only replaces an error (annotationStatus.Supersedes). Reports whether the
// write was applied.
func (s *Store) AttachAnnotation(ctx context.Context, a *models.Annotation) (bool, error) {
	if a.FetchedAt.IsZero() {
		a.FetchedAt = time.Now().UTC()
	}

	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant_id"}, {Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "payload", "message", "attempts", "fetched_at", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{
					SQL:  "annotations.status = ? OR excluded.status <> ?",
					Vars: []interface{}{annotationStatus.Error, annotationStatus.Error},
				},
			}},
		}).
		Create(a)
	if res.Error != nil {
		return false, fmt.Errorf("writing %s annotation for variant %d: %w", a.Source, a.VariantID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetAnnotation(ctx context.Context, variantId uint, source constants.AnnotationSource) (*models.Annotation, error) {
	var a models.Annotation
	err := s.DB.WithContext(ctx).Where("variant_id = ? AND source = ?", variantId, source).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s annotation for variant %d: %w", source, variantId, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// OkSources maps each variant id to the sources it already has an ok annotation for
func (s *Store) OkSources(ctx context.Context, variantIds []uint) (map[uint]map[constants.AnnotationSource]bool, error) {
	out := map[uint]map[constants.AnnotationSource]bool{}
	if len(variantIds) == 0 {
		return out, nil
	}

	var rows []models.Annotation
	err := s.DB.WithContext(ctx).
		Select("variant_id", "source").
		Where("status = ? AND variant_id IN ?", annotationStatus.Ok, variantIds).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		if out[r.VariantID] == nil {
			out[r.VariantID] = map[constants.AnnotationSource]bool{}
		}
		out[r.VariantID][r.Source] = true
	}
	return out, nil
}

// GeneSymbol looks for a gene symbol in the variant's ok clinical
// significance or transcript payloads
func (s *Store) GeneSymbol(ctx context.Context, variantId uint) (string, error) {
	var rows []models.Annotation
	err := s.DB.WithContext(ctx).
		Where("variant_id = ? AND status = ?", variantId, annotationStatus.Ok).
		Where("source IN ?", []constants.AnnotationSource{annotationSource.ClinicalSignificance, annotationSource.TranscriptInfo}).
		Where(datatypes.JSONQuery("payload").HasKey("gene_symbol")).
		Find(&rows).Error
	if err != nil {
		return "", err
	}

	bySource := map[constants.AnnotationSource]string{}
	for _, r := range rows {
		var payload struct {
			GeneSymbol string `json:"gene_symbol"`
		}
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			continue
		}
		bySource[r.Source] = payload.GeneSymbol
	}

	for _, src := range []constants.AnnotationSource{annotationSource.ClinicalSignificance, annotationSource.TranscriptInfo} {
		if sym := bySource[src]; sym != "" {
			return sym, nil
		}
	}
	return "", nil
}

// AnnotationCounts tallies the stored annotations per source and status
func (s *Store) AnnotationCounts(ctx context.Context) ([]AnnotationCount, error) {
	var out []AnnotationCount
	err := s.DB.WithContext(ctx).
		Model(&models.Annotation{}).
		Select("source, status, COUNT(*) AS count").
		Group("source, status").
		Order("source, status").
		Scan(&out).Error
	return out, err
}
