package annotation

import (
	"context"
	"net/http"
	"testing"
	"time"

	"pvv/api/models"

	"github.com/jarcoal/httpmock"
)

const (
	clinVarBase = "https://eutils.test/entrez/eutils"
	hgncBase    = "https://hgnc.test"
	vvBase      = "https://vv.test"

	esearchSncaBody = `{
		"header": {"type": "esearch", "version": "0.3"},
		"esearchresult": {"count": "2", "retmax": "2", "retstart": "0", "idlist": ["99", "14010"]}
	}`

	esearchEmptyBody = `{"esearchresult": {"count": "0", "retmax": "0", "retstart": "0", "idlist": []}}`

	esummarySncaBody = `{
		"result": {
			"uids": ["99", "14010"],
			"99": {
				"uid": "99",
				"accession": "VCV000000099",
				"title": "NM_000345.4(SNCA):c.157G>C (p.Ala53Pro)",
				"germline_classification": {"description": "Uncertain significance", "review_status": "criteria provided, single submitter", "trait_set": []},
				"variation_set": [{"canonical_spdi": "NC_000004.12:89828148:C:G", "cdna_change": "c.157G>C"}],
				"genes": [{"symbol": "SNCA", "geneid": "6622"}]
			},
			"14010": {
				"uid": "14010",
				"accession": "VCV000014010",
				"title": "NM_000345.4(SNCA):c.157G>A (p.Ala53Thr)",
				"protein_change": "A53T",
				"germline_classification": {
					"description": "Pathogenic",
					"review_status": "criteria provided, multiple submitters, no conflicts",
					"trait_set": [
						{"trait_name": "Parkinson disease 1", "trait_xrefs": [{"db_source": "MedGen", "db_id": "C1868595"}, {"db_source": "OMIM", "db_id": "168601"}]},
						{"trait_name": "Parkinson disease 4", "trait_xrefs": [{"db_source": "OMIM", "db_id": "605543"}]},
						{"trait_name": "Parkinson disease 1", "trait_xrefs": []}
					]
				},
				"variation_set": [{"canonical_spdi": "NC_000004.12:89828148:C:T", "cdna_change": "c.157G>A", "variation_name": "NM_000345.4(SNCA):c.157G>A (p.Ala53Thr)"}],
				"genes": [{"symbol": "SNCA", "geneid": "6622"}]
			}
		}
	}`

	esearchPrknBody = `{"esearchresult": {"count": "1", "retmax": "1", "retstart": "0", "idlist": ["431"]}}`

	esummaryPrknDeletionBody = `{
		"result": {
			"uids": ["431"],
			"431": {
				"uid": "431",
				"accession": "VCV000000431",
				"title": "NM_004562.3(PRKN):c.155del (p.Asn52fs)",
				"germline_classification": {"description": "Pathogenic", "review_status": "criteria provided, multiple submitters, no conflicts", "trait_set": [{"trait_name": "Autosomal recessive juvenile Parkinson disease 2", "trait_xrefs": []}]},
				"variation_set": [{"canonical_spdi": "NC_000006.12:161785820:G:", "cdna_change": "c.155del"}],
				"genes": [{"symbol": "PRKN", "geneid": "5071"}]
			}
		}
	}`

	hgncSncaBody = `{
		"responseHeader": {"status": 0, "QTime": 1},
		"response": {
			"numFound": 1,
			"start": 0,
			"docs": [{
				"hgnc_id": "HGNC:11138",
				"symbol": "SNCA",
				"name": "synuclein alpha",
				"locus_type": "gene with protein product",
				"location": "4q22.1",
				"entrez_id": "6622",
				"ensembl_gene_id": "ENSG00000145335",
				"omim_id": ["163890"],
				"prev_symbol": ["PARK1", "PARK4"]
			}]
		}
	}`

	hgncEmptyBody = `{"responseHeader": {"status": 0}, "response": {"numFound": 0, "start": 0, "docs": []}}`

	vvSncaBody = `{
		"flag": "gene_variant",
		"NM_000345.4:c.157G>A": {
			"hgvs_transcript_variant": "NM_000345.4:c.157G>A",
			"gene_symbol": "SNCA",
			"gene_ids": {"hgnc_id": "HGNC:11138", "entrez_gene_id": "6622"},
			"hgvs_predicted_protein_consequence": {"slr": "NP_000336.1:p.(A53T)", "tlr": "NP_000336.1:p.(Ala53Thr)"},
			"primary_assembly_loci": {
				"grch38": {"hgvs_genomic_description": "NC_000004.12:g.89828149C>T"},
				"grch37": {"hgvs_genomic_description": "NC_000004.11:g.90749300C>T"}
			},
			"validation_warnings": []
		},
		"metadata": {"variantvalidator_version": "3.0.1"}
	}`

	vvWarningBody = `{
		"flag": "warning",
		"validation_warning_1": {
			"validation_warnings": ["NC_000004.12:g.89828149C>G: Variant reference (C) does not agree with reference sequence (G)"]
		},
		"metadata": {}
	}`
)

func newMockTransport(t *testing.T) (*httpmock.MockTransport, ClientOptions) {
	t.Helper()

	mock := httpmock.NewMockTransport()
	return mock, ClientOptions{
		HttpClient: &http.Client{Transport: mock},
		Policy:     fastPolicy(3),
		Timeout:    50 * time.Millisecond,
	}
}

// blocks until the request times out
func hangingResponder(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func sncaVariant() *models.Variant {
	v := &models.Variant{
		ID:              1,
		PatientId:       "1",
		Chromosome:      "4",
		Position:        89828149,
		ReferenceAllele: "C",
		AlternateAllele: "T",
	}
	v.VariantKey = v.Key()
	return v
}

type staticSymbols map[uint]string

func (s staticSymbols) GeneSymbol(_ context.Context, variantId uint) (string, error) {
	return s[variantId], nil
}
