package annotations

import (
	"encoding/json"
	"pvv/api/models"
	"pvv/api/models/constants"
	"time"

	"gorm.io/datatypes"
)

type (
	// ClinVar record matched to a variant
	ClinicalSignificance struct {
		ClinVarId            string               `json:"clinvar_id"`
		Accession            string               `json:"accession"`
		Title                string               `json:"title"`
		ClinicalSignificance string               `json:"clinical_significance"`
		ReviewStatus         string               `json:"review_status"`
		StarRating           constants.StarRating `json:"star_rating"`
		Conditions           string               `json:"conditions"`
		OmimId               string               `json:"omim_id,omitempty"`
		GeneSymbol           string               `json:"gene_symbol,omitempty"`
		ProteinChange        string               `json:"protein_change,omitempty"`
		CdnaChange           string               `json:"cdna_change,omitempty"`
		Spdi                 string               `json:"spdi,omitempty"`
	}

	// HGNC approved nomenclature for a gene
	GeneNomenclature struct {
		HgncId         string   `json:"hgnc_id" mapstructure:"hgnc_id"`
		Symbol         string   `json:"symbol" mapstructure:"symbol"`
		Name           string   `json:"name" mapstructure:"name"`
		LocusType      string   `json:"locus_type" mapstructure:"locus_type"`
		Location       string   `json:"location" mapstructure:"location"`
		EntrezId       string   `json:"entrez_id,omitempty" mapstructure:"entrez_id"`
		EnsemblGeneId  string   `json:"ensembl_gene_id,omitempty" mapstructure:"ensembl_gene_id"`
		OmimIds        []string `json:"omim_ids,omitempty" mapstructure:"omim_id"`
		QueriedSymbol  string   `json:"queried_symbol"`
		PreviousSymbol bool     `json:"previous_symbol"`
		// gene_symbol mirrors symbol so every ok payload exposes the same key
		GeneSymbol string `json:"gene_symbol"`
	}

	// VariantValidator HGVS descriptions for a variant
	TranscriptInfo struct {
		GenomicHgvs       string   `json:"genomic_hgvs"`
		TranscriptHgvs    string   `json:"transcript_hgvs,omitempty"`
		ProteinHgvs       string   `json:"protein_hgvs,omitempty"`
		ProteinHgvsSlr    string   `json:"protein_hgvs_slr,omitempty"`
		GeneSymbol        string   `json:"gene_symbol,omitempty"`
		HgncId            string   `json:"hgnc_id,omitempty"`
		Transcripts       []string `json:"transcripts,omitempty"`
		ValidatorWarnings []string `json:"warnings,omitempty"`
	}

	// Tagged outcome of a single source lookup
	Result struct {
		Source    constants.AnnotationSource `json:"source"`
		Status    constants.AnnotationStatus `json:"status"`
		Payload   interface{}                `json:"payload,omitempty"`
		Message   string                     `json:"message,omitempty"`
		Attempts  int                        `json:"attempts"`
		FetchedAt time.Time                  `json:"fetchedAt"`
	}
)

// ToAnnotation converts the result into the row persisted for the variant
func (r *Result) ToAnnotation(variantId uint) (*models.Annotation, error) {
	var payload datatypes.JSON
	if r.Payload != nil {
		raw, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, err
		}
		payload = datatypes.JSON(raw)
	}

	return &models.Annotation{
		VariantID: variantId,
		Source:    r.Source,
		Status:    r.Status,
		Payload:   payload,
		Message:   r.Message,
		Attempts:  r.Attempts,
		FetchedAt: r.FetchedAt,
	}, nil
}
