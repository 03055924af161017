package dtos

import (
	"time"

	"pvv/api/models"
	"pvv/api/models/indexes"
)

type GeneralErrorResponseDto struct {
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Errors    []GeneralError `json:"errors"`
}

type GeneralError struct {
	Message string `json:"message"`
}

// -- --

type VariantsResponseDTO struct {
	Status  int              `json:"status"`
	Message string           `json:"message"`
	Total   int64            `json:"total"`
	Count   int              `json:"count"`
	Limit   int              `json:"limit,omitempty"`
	Offset  int              `json:"offset,omitempty"`
	Results []models.Variant `json:"results"`
}

type VariantSearchResponseDTO struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Term    string            `json:"term"`
	Total   int               `json:"total"`
	Count   int               `json:"count"`
	Results []indexes.Variant `json:"results"`
}

type VariantsOverviewDTO struct {
	Patients   []string         `json:"patients"`
	Variants   int64            `json:"variants"`
	ByPatient  map[string]int64 `json:"byPatient"`
	Annotation interface{}      `json:"annotation"`
}

// -- --

type BatchesResponseDTO struct {
	Status  int                `json:"status"`
	Message string             `json:"message"`
	Count   int                `json:"count"`
	Results []models.LoadBatch `json:"results"`
}

// -- --

type AnnotationStatusCounts map[string]int64

type AnnotationSummaryDTO struct {
	Sources map[string]AnnotationStatusCounts `json:"sources"`
	// variants still lacking an ok annotation, per source
	Outstanding map[string]int64 `json:"outstanding"`
	LastRefresh interface{}      `json:"lastRefresh,omitempty"`
}
