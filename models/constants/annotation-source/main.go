package annotationSource

import (
	"pvv/api/models/constants"
	"strings"
)

const (
	Unknown constants.AnnotationSource = ""

	TranscriptInfo       constants.AnnotationSource = "transcript_info"
	ClinicalSignificance constants.AnnotationSource = "clinical_significance"
	GeneNomenclature     constants.AnnotationSource = "gene_nomenclature"
)

// All returns every source in the order they are fetched for a variant;
// gene nomenclature comes last so it can reuse symbols found by the others
func All() []constants.AnnotationSource {
	return []constants.AnnotationSource{TranscriptInfo, ClinicalSignificance, GeneNomenclature}
}

func CastToAnnotationSource(text string) constants.AnnotationSource {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "transcript_info", "transcript", "variantvalidator":
		return TranscriptInfo
	case "clinical_significance", "clinvar":
		return ClinicalSignificance
	case "gene_nomenclature", "gene", "hgnc":
		return GeneNomenclature
	default:
		return Unknown
	}
}

func IsKnownAnnotationSource(text string) bool {
	return CastToAnnotationSource(text) != Unknown
}

// Parse turns a list of names into sources, keeping the canonical order
// and dropping duplicates. An empty list means all sources.
func Parse(names []string) ([]constants.AnnotationSource, bool) {
	if len(names) == 0 {
		return All(), true
	}
	wanted := map[constants.AnnotationSource]bool{}
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			s := CastToAnnotationSource(part)
			if s == Unknown {
				return nil, false
			}
			wanted[s] = true
		}
	}
	if len(wanted) == 0 {
		return All(), true
	}
	out := []constants.AnnotationSource{}
	for _, s := range All() {
		if wanted[s] {
			out = append(out, s)
		}
	}
	return out, true
}
