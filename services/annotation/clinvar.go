package annotation

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"pvv/api/models"
	"pvv/api/models/annotations"
	"pvv/api/models/constants"
	annotationSource "pvv/api/models/constants/annotation-source"
	assemblyId "pvv/api/models/constants/assembly-id"
	reviewStatus "pvv/api/models/constants/review-status"
)

var (
	proteinChangePattern = regexp.MustCompile(`\((p\.[^)]+)\)`)
	cdnaChangePattern    = regexp.MustCompile(`:(c\.[^\s(]+)`)
)

const clinVarMaxHits = 20

type (
	ClinVarClient struct {
		*httpSource
		AssemblyId constants.AssemblyId
		ApiKey     string
		Email      string
		Tool       string
	}

	esummaryDoc struct {
		Uid                    string          `mapstructure:"uid"`
		Accession              string          `mapstructure:"accession"`
		Title                  string          `mapstructure:"title"`
		ProteinChange          string          `mapstructure:"protein_change"`
		GermlineClassification classification  `mapstructure:"germline_classification"`
		ClinicalSignificance   classification  `mapstructure:"clinical_significance"`
		VariationSet           []variationItem `mapstructure:"variation_set"`
		Genes                  []struct {
			Symbol string `mapstructure:"symbol"`
		} `mapstructure:"genes"`
	}

	classification struct {
		Description  string  `mapstructure:"description"`
		ReviewStatus string  `mapstructure:"review_status"`
		TraitSet     []trait `mapstructure:"trait_set"`
	}

	trait struct {
		TraitName  string `mapstructure:"trait_name"`
		TraitXrefs []struct {
			DbSource string `mapstructure:"db_source"`
			DbId     string `mapstructure:"db_id"`
		} `mapstructure:"trait_xrefs"`
	}

	variationItem struct {
		CanonicalSpdi string `mapstructure:"canonical_spdi"`
		CdnaChange    string `mapstructure:"cdna_change"`
		VariationName string `mapstructure:"variation_name"`
	}
)

func NewClinVarClient(baseUrl string, assembly constants.AssemblyId, opts ClientOptions) *ClinVarClient {
	return &ClinVarClient{
		httpSource: newHttpSource(annotationSource.ClinicalSignificance, strings.TrimRight(baseUrl, "/"), opts),
		AssemblyId: assembly,
	}
}

func (c *ClinVarClient) query(params url.Values) url.Values {
	params.Set("db", "clinvar")
	params.Set("retmode", "json")
	if c.ApiKey != "" {
		params.Set("api_key", c.ApiKey)
	}
	if c.Tool != "" {
		params.Set("tool", c.Tool)
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}
	return params
}

func (c *ClinVarClient) Fetch(ctx context.Context, v *models.Variant) annotations.Result {
	if v.IsSymbolic() {
		return c.notFound("symbolic alleles cannot be looked up in ClinVar", 0)
	}

	ids, searchAttempts, err := c.search(ctx, v)
	if err != nil {
		return c.failed(v, err, searchAttempts)
	}

	docs, summaryAttempts, err := c.summaries(ctx, ids)
	attempts := searchAttempts + summaryAttempts
	if err != nil {
		return c.failed(v, err, attempts)
	}

	for _, doc := range docs {
		if spdiMatches(doc, v) {
			return c.ok(toClinicalSignificance(doc), attempts)
		}
	}
	return c.failed(v, fmt.Errorf("%w: no ClinVar record matches %s", ErrNotFound, v.VariantKey), attempts)
}

func (c *ClinVarClient) search(ctx context.Context, v *models.Variant) ([]string, int, error) {
	// indels are indexed from the first changed base, past the VCF anchor
	positions := strconv.Itoa(v.Position)
	if len(v.ReferenceAllele) != 1 || len(v.AlternateAllele) != 1 {
		positions = fmt.Sprintf("%d:%d", v.Position, v.Position+len(v.ReferenceAllele))
	}
	term := fmt.Sprintf("%s[chr] AND %s[%s]", v.Chromosome, positions, assemblyId.ChrPosField(c.AssemblyId))
	params := c.query(url.Values{})
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(clinVarMaxHits))

	res, attempts, err := c.getJSON(ctx, "/esearch.fcgi", params)
	if err != nil {
		return nil, attempts, err
	}

	if !res.Exists("esearchresult") {
		return nil, attempts, malformed("esearch result missing")
	}
	if msg, ok := res.Path("esearchresult.ERROR").Data().(string); ok && msg != "" {
		return nil, attempts, &PermanentError{Err: fmt.Errorf("esearch: %s", msg)}
	}

	children, _ := res.Path("esearchresult.idlist").Children()
	var ids []string
	for _, child := range children {
		if id, ok := child.Data().(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, attempts, fmt.Errorf("%w: no ClinVar record at %s:%d", ErrNotFound, v.Chromosome, v.Position)
	}
	return ids, attempts, nil
}

func (c *ClinVarClient) summaries(ctx context.Context, ids []string) ([]esummaryDoc, int, error) {
	params := c.query(url.Values{})
	params.Set("id", strings.Join(ids, ","))

	res, attempts, err := c.getJSON(ctx, "/esummary.fcgi", params)
	if err != nil {
		return nil, attempts, err
	}

	result := res.Path("result")
	if result.Data() == nil {
		return nil, attempts, malformed("esummary result missing")
	}

	// keep the esearch ordering
	var docs []esummaryDoc
	for _, id := range ids {
		raw := result.Search(id).Data()
		if raw == nil {
			continue
		}
		var doc esummaryDoc
		if err := decode(raw, &doc); err != nil {
			return nil, attempts, malformed("esummary document %s: %v", id, err)
		}
		if doc.Uid == "" {
			doc.Uid = id
		}
		docs = append(docs, doc)
	}
	return docs, attempts, nil
}

type allele struct {
	start int
	ref   string
	alt   string
}

// trimAllele drops the bases shared by ref and alt, suffix first, so a VCF
// anchored indel and a repeat-widened SPDI reduce to the same 0-based start
func trimAllele(start int, ref string, alt string) allele {
	ref, alt = strings.ToUpper(ref), strings.ToUpper(alt)
	for len(ref) > 0 && len(alt) > 0 && ref[len(ref)-1] == alt[len(alt)-1] {
		ref, alt = ref[:len(ref)-1], alt[:len(alt)-1]
	}
	for len(ref) > 0 && len(alt) > 0 && ref[0] == alt[0] {
		ref, alt = ref[1:], alt[1:]
		start++
	}
	return allele{start: start, ref: ref, alt: alt}
}

// spdiMatches compares the canonical SPDI (0-based position) with the variant
func spdiMatches(doc esummaryDoc, v *models.Variant) bool {
	want := trimAllele(v.Position-1, v.ReferenceAllele, v.AlternateAllele)
	for _, item := range doc.VariationSet {
		parts := strings.Split(item.CanonicalSpdi, ":")
		if len(parts) != 4 {
			continue
		}
		pos, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		if trimAllele(pos, parts[2], parts[3]) == want {
			return true
		}
	}
	return false
}

func toClinicalSignificance(doc esummaryDoc) *annotations.ClinicalSignificance {
	cls := doc.GermlineClassification
	if cls.Description == "" && cls.ReviewStatus == "" {
		cls = doc.ClinicalSignificance
	}

	out := &annotations.ClinicalSignificance{
		ClinVarId:            doc.Uid,
		Accession:            doc.Accession,
		Title:                doc.Title,
		ClinicalSignificance: cls.Description,
		ReviewStatus:         cls.ReviewStatus,
		StarRating:           reviewStatus.ToStarRating(cls.ReviewStatus),
	}

	var conditions []string
	seen := map[string]bool{}
	for _, t := range cls.TraitSet {
		if t.TraitName != "" && !seen[t.TraitName] {
			seen[t.TraitName] = true
			conditions = append(conditions, t.TraitName)
		}
		for _, x := range t.TraitXrefs {
			if out.OmimId == "" && strings.EqualFold(x.DbSource, "OMIM") {
				out.OmimId = x.DbId
			}
		}
	}
	out.Conditions = strings.Join(conditions, "; ")

	if len(doc.Genes) > 0 {
		out.GeneSymbol = doc.Genes[0].Symbol
	}

	if m := proteinChangePattern.FindStringSubmatch(doc.Title); m != nil {
		out.ProteinChange = m[1]
	} else if doc.ProteinChange != "" {
		out.ProteinChange = doc.ProteinChange
	}

	if len(doc.VariationSet) > 0 {
		out.Spdi = doc.VariationSet[0].CanonicalSpdi
		out.CdnaChange = doc.VariationSet[0].CdnaChange
	}
	if out.CdnaChange == "" {
		if m := cdnaChangePattern.FindStringSubmatch(doc.Title); m != nil {
			out.CdnaChange = m[1]
		}
	}

	return out
}
