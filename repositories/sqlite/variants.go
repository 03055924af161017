package sqlite

import (
	"context"
	"errors"
	"fmt"

	"pvv/api/models"
	"pvv/api/models/constants"
	annotationStatus "pvv/api/models/constants/annotation-status"
	"pvv/api/models/constants/sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VariantFilter struct {
	PatientId  string
	Chromosome string
	AssemblyId constants.AssemblyId
	LowerBound int
	UpperBound int
	Limit      int
	Offset     int
	// applies to position within patient and chromosome
	Sort constants.SortDirection
}

const noOkAnnotation = "NOT EXISTS (SELECT 1 FROM annotations a WHERE a.variant_id = variants.id AND a.source = ? AND a.status = ?)"

// Upsert inserts the variant unless its key already exists, in which case
// the stored row is returned unchanged
func (s *Store) Upsert(ctx context.Context, v *models.Variant) (*models.Variant, bool, error) {
	v.VariantKey = v.Key()

	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant_key"}},
			DoNothing: true,
		}).
		Create(v)
	if res.Error != nil {
		return nil, false, fmt.Errorf("inserting variant %s: %w", v.VariantKey, res.Error)
	}
	if res.RowsAffected == 1 {
		return v, true, nil
	}

	existing, err := s.GetVariantByKey(ctx, v.VariantKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) GetVariantByKey(ctx context.Context, key string) (*models.Variant, error) {
	var v models.Variant
	err := s.DB.WithContext(ctx).Where("variant_key = ?", key).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("variant %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) GetVariantById(ctx context.Context, id uint) (*models.Variant, error) {
	var v models.Variant
	err := s.DB.WithContext(ctx).Preload("Annotations").First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("variant %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) GetVariantsByIds(ctx context.Context, ids []uint) ([]models.Variant, error) {
	var out []models.Variant
	if len(ids) == 0 {
		return out, nil
	}
	err := s.DB.WithContext(ctx).Preload("Annotations").Where("id IN ?", ids).Order("id").Find(&out).Error
	return out, err
}

// GetVariants lists variants with their annotations ordered by patient and locus
func (s *Store) GetVariants(ctx context.Context, filter VariantFilter) ([]models.Variant, int64, error) {
	filtered := func(db *gorm.DB) *gorm.DB {
		if filter.PatientId != "" {
			db = db.Where("patient_id = ?", filter.PatientId)
		}
		if filter.Chromosome != "" {
			db = db.Where("chromosome = ?", filter.Chromosome)
		}
		if filter.AssemblyId != "" {
			db = db.Where("assembly_id = ?", filter.AssemblyId)
		}
		if filter.LowerBound > 0 {
			db = db.Where("position >= ?", filter.LowerBound)
		}
		if filter.UpperBound > 0 {
			db = db.Where("position <= ?", filter.UpperBound)
		}
		return db
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Variant{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	var out []models.Variant
	err := s.DB.WithContext(ctx).Scopes(filtered).
		Preload("Annotations").
		Order(locusOrder(filter.Sort)).
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&out).Error
	return out, total, err
}

func locusOrder(direction constants.SortDirection) string {
	if direction == sort.Descending {
		return "patient_id, chromosome, position DESC"
	}
	return "patient_id, chromosome, position"
}

// GetUnannotated returns the variants without an ok annotation for the source,
// optionally restricted to one patient
func (s *Store) GetUnannotated(ctx context.Context, source constants.AnnotationSource, patientId string) ([]models.Variant, error) {
	q := s.DB.WithContext(ctx).Where(noOkAnnotation, source, annotationStatus.Ok)
	if patientId != "" {
		q = q.Where("patient_id = ?", patientId)
	}

	var out []models.Variant
	err := q.Order("id").Find(&out).Error
	return out, err
}

func (s *Store) CountUnannotated(ctx context.Context, source constants.AnnotationSource) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Variant{}).Where(noOkAnnotation, source, annotationStatus.Ok).Count(&n).Error
	return n, err
}

// GetOutstanding returns the variants lacking an ok annotation for at least
// one of the sources
func (s *Store) GetOutstanding(ctx context.Context, sources []constants.AnnotationSource, patientId string) ([]models.Variant, error) {
	var out []models.Variant
	if len(sources) == 0 {
		return out, nil
	}

	q := s.DB.WithContext(ctx).
		Where("(SELECT COUNT(DISTINCT a.source) FROM annotations a WHERE a.variant_id = variants.id AND a.status = ? AND a.source IN ?) < ?",
			annotationStatus.Ok, sources, len(sources))
	if patientId != "" {
		q = q.Where("patient_id = ?", patientId)
	}

	err := q.Order("id").Find(&out).Error
	return out, err
}

func (s *Store) GetPatientIds(ctx context.Context) ([]string, error) {
	var out []string
	err := s.DB.WithContext(ctx).Model(&models.Variant{}).Distinct().Order("patient_id").Pluck("patient_id", &out).Error
	return out, err
}

// CountByPatient returns the number of stored variants per patient
func (s *Store) CountByPatient(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		PatientId string
		Count     int64
	}
	err := s.DB.WithContext(ctx).
		Model(&models.Variant{}).
		Select("patient_id, COUNT(*) AS count").
		Group("patient_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.PatientId] = r.Count
	}
	return out, nil
}
