package indexes

import (
	"encoding/json"
	"time"

	"pvv/api/models"
	"pvv/api/models/annotations"
	annotationSource "pvv/api/models/constants/annotation-source"
)

// Variant is the search document mirrored for each annotated variant
type Variant struct {
	Key        string `json:"key" mapstructure:"key"`
	PatientId  string `json:"patientId" mapstructure:"patientId"`
	Chrom      string `json:"chrom" mapstructure:"chrom"`
	Pos        int    `json:"pos" mapstructure:"pos"`
	Id         string `json:"id" mapstructure:"id"`
	Ref        string `json:"ref" mapstructure:"ref"`
	Alt        string `json:"alt" mapstructure:"alt"`
	Filter     string `json:"filter" mapstructure:"filter"`
	Info       []Info `json:"info" mapstructure:"info"`
	AssemblyId string `json:"assemblyId" mapstructure:"assemblyId"`

	GeneSymbol           string   `json:"geneSymbol" mapstructure:"geneSymbol"`
	HgncId               string   `json:"hgncId" mapstructure:"hgncId"`
	ClinicalSignificance string   `json:"clinicalSignificance" mapstructure:"clinicalSignificance"`
	StarRating           string   `json:"starRating" mapstructure:"starRating"`
	Conditions           string   `json:"conditions" mapstructure:"conditions"`
	GenomicHgvs          string   `json:"genomicHgvs" mapstructure:"genomicHgvs"`
	TranscriptHgvs       string   `json:"transcriptHgvs" mapstructure:"transcriptHgvs"`
	ProteinHgvs          string   `json:"proteinHgvs" mapstructure:"proteinHgvs"`
	Sources              []string `json:"sources" mapstructure:"sources"`

	BatchId     string    `json:"batchId" mapstructure:"batchId"`
	CreatedTime time.Time `json:"createdTime" mapstructure:"-"`
}

type Info struct {
	Id    string `json:"id" mapstructure:"id"`
	Value string `json:"value" mapstructure:"value"`
}

// FromVariant flattens a stored variant and its ok annotations into a document
func FromVariant(v *models.Variant) Variant {
	doc := Variant{
		Key:         v.VariantKey,
		PatientId:   v.PatientId,
		Chrom:       v.Chromosome,
		Pos:         v.Position,
		Id:          v.VcfId,
		Ref:         v.ReferenceAllele,
		Alt:         v.AlternateAllele,
		Filter:      v.Filter,
		AssemblyId:  string(v.AssemblyId),
		GeneSymbol:  v.GeneHint,
		BatchId:     v.BatchId,
		CreatedTime: v.CreatedAt,
		Info:        []Info{},
		Sources:     []string{},
	}
	for _, i := range v.Info {
		doc.Info = append(doc.Info, Info{Id: i.Id, Value: i.Value})
	}

	for _, a := range v.Annotations {
		if !a.IsOk() || len(a.Payload) == 0 {
			continue
		}
		doc.Sources = append(doc.Sources, string(a.Source))

		switch a.Source {
		case annotationSource.ClinicalSignificance:
			var p annotations.ClinicalSignificance
			if json.Unmarshal(a.Payload, &p) == nil {
				doc.ClinicalSignificance = p.ClinicalSignificance
				doc.StarRating = string(p.StarRating)
				doc.Conditions = p.Conditions
				if doc.GeneSymbol == "" {
					doc.GeneSymbol = p.GeneSymbol
				}
			}
		case annotationSource.TranscriptInfo:
			var p annotations.TranscriptInfo
			if json.Unmarshal(a.Payload, &p) == nil {
				doc.GenomicHgvs = p.GenomicHgvs
				doc.TranscriptHgvs = p.TranscriptHgvs
				doc.ProteinHgvs = p.ProteinHgvs
				if doc.GeneSymbol == "" {
					doc.GeneSymbol = p.GeneSymbol
				}
			}
		case annotationSource.GeneNomenclature:
			var p annotations.GeneNomenclature
			if json.Unmarshal(a.Payload, &p) == nil {
				doc.HgncId = p.HgncId
				// the approved symbol wins over hints and previous symbols
				if p.Symbol != "" {
					doc.GeneSymbol = p.Symbol
				}
			}
		}
	}
	return doc
}

// SearchableFields are matched by free-text variant searches
var SearchableFields = []string{
	"key", "id", "geneSymbol", "hgncId", "clinicalSignificance",
	"conditions", "genomicHgvs", "transcriptHgvs", "proteinHgvs",
}

var MAPPING_FIELDS_KEYWORD_IG256 = map[string]interface{}{
	"keyword": map[string]interface{}{
		"type":         "keyword",
		"ignore_above": 256,
	},
}
var MAPPING_TEXT = map[string]interface{}{"type": "text", "fields": MAPPING_FIELDS_KEYWORD_IG256}
var MAPPING_KEYWORD = map[string]interface{}{"type": "keyword"}
var MAPPING_LONG = map[string]interface{}{"type": "long"}
var MAPPING_DATE = map[string]interface{}{"type": "date"}

var VARIANT_INDEX_MAPPING = map[string]interface{}{
	"properties": map[string]interface{}{
		"key":       MAPPING_KEYWORD,
		"patientId": MAPPING_KEYWORD,
		"chrom":     MAPPING_KEYWORD,
		"pos":       MAPPING_LONG,
		"id":        MAPPING_TEXT,
		"ref":       MAPPING_KEYWORD,
		"alt":       MAPPING_KEYWORD,
		"filter":    MAPPING_TEXT,
		"info": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":    MAPPING_TEXT,
				"value": MAPPING_TEXT,
			},
		},
		"assemblyId":           MAPPING_KEYWORD,
		"geneSymbol":           MAPPING_TEXT,
		"hgncId":               MAPPING_TEXT,
		"clinicalSignificance": MAPPING_TEXT,
		"starRating":           MAPPING_KEYWORD,
		"conditions":           MAPPING_TEXT,
		"genomicHgvs":          MAPPING_TEXT,
		"transcriptHgvs":       MAPPING_TEXT,
		"proteinHgvs":          MAPPING_TEXT,
		"sources":              MAPPING_KEYWORD,
		"batchId":              MAPPING_KEYWORD,
		"createdTime":          MAPPING_DATE,
	},
}
