package annotation

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"pvv/api/models"
	"pvv/api/models/annotations"
	"pvv/api/models/constants"
	annotationSource "pvv/api/models/constants/annotation-source"
)

type (
	VariantValidatorClient struct {
		*httpSource
		AssemblyId  constants.AssemblyId
		Transcripts string
	}

	validatorEntry struct {
		HgvsTranscriptVariant string `mapstructure:"hgvs_transcript_variant"`
		GeneSymbol            string `mapstructure:"gene_symbol"`
		GeneIds               struct {
			HgncId string `mapstructure:"hgnc_id"`
		} `mapstructure:"gene_ids"`
		ProteinConsequence struct {
			Slr string `mapstructure:"slr"`
			Tlr string `mapstructure:"tlr"`
		} `mapstructure:"hgvs_predicted_protein_consequence"`
		PrimaryAssemblyLoci map[string]struct {
			HgvsGenomicDescription string `mapstructure:"hgvs_genomic_description"`
		} `mapstructure:"primary_assembly_loci"`
		ValidationWarnings []string `mapstructure:"validation_warnings"`
	}
)

func NewVariantValidatorClient(baseUrl string, assembly constants.AssemblyId, transcripts string, opts ClientOptions) *VariantValidatorClient {
	if transcripts == "" {
		transcripts = "mane_select"
	}
	return &VariantValidatorClient{
		httpSource:  newHttpSource(annotationSource.TranscriptInfo, strings.TrimRight(baseUrl, "/"), opts),
		AssemblyId:  assembly,
		Transcripts: transcripts,
	}
}

func (c *VariantValidatorClient) Fetch(ctx context.Context, v *models.Variant) annotations.Result {
	if v.IsSymbolic() {
		return c.notFound("symbolic alleles cannot be validated", 0)
	}

	description := fmt.Sprintf("%s-%d-%s-%s", v.Chromosome, v.Position, v.ReferenceAllele, v.AlternateAllele)
	endpoint := fmt.Sprintf("/VariantValidator/variantvalidator/%s/%s/%s",
		url.PathEscape(string(c.AssemblyId)), url.PathEscape(description), url.PathEscape(c.Transcripts))

	res, attempts, err := c.getJSON(ctx, endpoint, url.Values{"content-type": []string{"application/json"}})
	if err != nil {
		return c.failed(v, err, attempts)
	}

	info, err := c.parse(res.Data())
	if err != nil {
		return c.failed(v, err, attempts)
	}
	return c.ok(info, attempts)
}

func (c *VariantValidatorClient) parse(data interface{}) (*annotations.TranscriptInfo, error) {
	top, ok := data.(map[string]interface{})
	if !ok {
		return nil, malformed("VariantValidator response is not an object")
	}

	flag, _ := top["flag"].(string)

	keys := make([]string, 0, len(top))
	for k := range top {
		if k == "flag" || k == "metadata" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var entries []validatorEntry
	var warnings []string
	for _, k := range keys {
		var entry validatorEntry
		if err := decode(top[k], &entry); err != nil {
			return nil, malformed("VariantValidator entry %s: %v", k, err)
		}
		warnings = append(warnings, entry.ValidationWarnings...)
		if strings.HasPrefix(k, "validation_warning") {
			continue
		}
		entries = append(entries, entry)
	}

	if flag == "warning" || flag == "empty_result" || len(entries) == 0 {
		reason := strings.Join(warnings, "; ")
		if reason == "" {
			reason = fmt.Sprintf("validator flag %q", flag)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reason)
	}

	build := strings.ToLower(string(c.AssemblyId))
	info := &annotations.TranscriptInfo{ValidatorWarnings: warnings}
	for _, e := range entries {
		if e.HgvsTranscriptVariant != "" {
			info.Transcripts = append(info.Transcripts, e.HgvsTranscriptVariant)
		}
		if info.GenomicHgvs == "" {
			info.GenomicHgvs = e.PrimaryAssemblyLoci[build].HgvsGenomicDescription
		}
		if info.TranscriptHgvs == "" && e.HgvsTranscriptVariant != "" {
			info.TranscriptHgvs = e.HgvsTranscriptVariant
			info.ProteinHgvs = e.ProteinConsequence.Tlr
			info.ProteinHgvsSlr = e.ProteinConsequence.Slr
			info.GeneSymbol = e.GeneSymbol
			info.HgncId = e.GeneIds.HgncId
		}
	}

	if info.GenomicHgvs == "" && info.TranscriptHgvs == "" {
		return nil, malformed("VariantValidator returned no HGVS description")
	}
	return info, nil
}
