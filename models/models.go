package models

import (
	"fmt"
	"pvv/api/models/constants"
	annotationStatus "pvv/api/models/constants/annotation-status"
	"pvv/api/models/ingest"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type (
	Variant struct {
		ID              uint   `gorm:"primaryKey" json:"id"`
		VariantKey      string `gorm:"uniqueIndex;not null" json:"variantKey"`
		PatientId       string `gorm:"index;not null" json:"patientId"`
		Chromosome      string `gorm:"index:idx_variant_locus;not null" json:"chromosome"`
		Position        int    `gorm:"index:idx_variant_locus;not null" json:"position"`
		ReferenceAllele string `gorm:"not null" json:"referenceAllele"`
		AlternateAllele string `gorm:"not null" json:"alternateAllele"`

		VcfId      string                    `json:"vcfId"`
		Qual       string                    `json:"qual"`
		Filter     string                    `json:"filter"`
		Info       datatypes.JSONSlice[Info] `json:"info"`
		GeneHint   string                    `json:"geneHint"`
		AssemblyId constants.AssemblyId      `json:"assemblyId"`
		BatchId    string                    `gorm:"index" json:"batchId"`
		CreatedAt  time.Time                 `json:"createdAt"`

		Annotations []Annotation `gorm:"constraint:OnDelete:CASCADE" json:"annotations,omitempty"`
	}

	Info struct {
		Id    string `json:"id"`
		Value string `json:"value"`
	}

	Annotation struct {
		ID        uint                       `gorm:"primaryKey" json:"-"`
		VariantID uint                       `gorm:"uniqueIndex:idx_annotation_variant_source;not null" json:"variantId"`
		Source    constants.AnnotationSource `gorm:"uniqueIndex:idx_annotation_variant_source;not null" json:"source"`
		Status    constants.AnnotationStatus `gorm:"index;not null" json:"status"`
		Payload   datatypes.JSON             `json:"payload"`
		Message   string                     `json:"message,omitempty"`
		Attempts  int                        `json:"attempts"`
		FetchedAt time.Time                  `json:"fetchedAt"`
		UpdatedAt time.Time                  `json:"updatedAt"`
	}

	LoadBatch struct {
		ID          string               `gorm:"primaryKey" json:"id"`
		FileName    string               `gorm:"index" json:"fileName"`
		FilePath    string               `json:"filePath"`
		Digest      string               `gorm:"index" json:"digest"`
		PatientId   string               `gorm:"index" json:"patientId"`
		AssemblyId  constants.AssemblyId `json:"assemblyId"`
		State       ingest.State         `gorm:"index" json:"state"`
		Seen        int                  `json:"seen"`
		New         int                  `json:"new"`
		Skipped     int                  `json:"skipped"`
		ParseErrors int                  `json:"parseErrors"`
		Message     string               `json:"message,omitempty"`
		Summary     datatypes.JSON       `json:"summary,omitempty"`
		StartedAt   time.Time            `json:"startedAt"`
		FinishedAt  *time.Time           `json:"finishedAt,omitempty"`

		LineErrors []ParseError `gorm:"foreignKey:BatchId;constraint:OnDelete:CASCADE" json:"lineErrors,omitempty"`
	}

	ParseError struct {
		ID      uint   `gorm:"primaryKey" json:"-"`
		BatchId string `gorm:"index;not null" json:"batchId"`
		Line    int    `json:"line"`
		Reason  string `json:"reason"`
		Text    string `json:"text"`
	}
)

// MakeVariantKey builds the deterministic identity of a variant
// from the patient and its four genomic fields
func MakeVariantKey(patientId string, chrom string, pos int, ref string, alt string) string {
	return fmt.Sprintf("%s:%s:%d:%s>%s", patientId, chrom, pos, strings.ToUpper(ref), strings.ToUpper(alt))
}

func (v *Variant) Key() string {
	return MakeVariantKey(v.PatientId, v.Chromosome, v.Position, v.ReferenceAllele, v.AlternateAllele)
}

// IsSymbolic reports whether either allele is structural-variant shorthand,
// which no annotation source can be queried with
func (v *Variant) IsSymbolic() bool {
	return IsSymbolicAllele(v.ReferenceAllele) || IsSymbolicAllele(v.AlternateAllele)
}

func IsSymbolicAllele(allele string) bool {
	return allele == "*" || strings.HasPrefix(allele, "<") || strings.ContainsAny(allele, "[]")
}

func (a *Annotation) IsOk() bool {
	return a.Status == annotationStatus.Ok
}
