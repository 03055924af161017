package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pvv/api/models"
	"pvv/api/models/annotations"
	"pvv/api/models/constants"
	annotationSource "pvv/api/models/constants/annotation-source"
	annotationStatus "pvv/api/models/constants/annotation-status"
	assemblyId "pvv/api/models/constants/assembly-id"
	"pvv/api/models/dtos"
	"pvv/api/models/ingest"
	"pvv/api/repositories/sqlite"
	"pvv/api/services"
	"pvv/api/services/annotation"
	"pvv/api/utils/logger"

	"github.com/labstack/echo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const patientVcf = `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr4	89828149	rs104893877	C	T	50	PASS	.
chr6	161350208	rs1801582	C	G	99	PASS	.
`

type noopAnnotator struct{}

func (noopAnnotator) Annotate(_ context.Context, variants []models.Variant, _ []constants.AnnotationSource) (*annotation.BatchResult, error) {
	return &annotation.BatchResult{Variants: len(variants), FailedVariantKeys: []string{}}, nil
}

type testServer struct {
	e         *echo.Echo
	store     *sqlite.Store
	ingestion *services.IngestionService
	variants  []models.Variant
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })

	cfg := models.DefaultConfig()
	cfg.Api.VcfPath = t.TempDir()

	registry := prometheus.NewRegistry()
	metrics, err := services.NewPipelineMetrics(registry)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	pipeline := services.NewPipeline(store, noopAnnotator{}, nil, assemblyId.GRCh38, metrics, logger.NewNop())
	iz := services.NewIngestionService(ctx, pipeline, &cfg, logger.NewNop())
	t.Cleanup(func() {
		iz.Wait()
		cancel()
	})

	ts := &testServer{
		store:     store,
		ingestion: iz,
		e: NewServer(Dependencies{
			Config:           &cfg,
			Store:            store,
			IngestionService: iz,
			Registry:         registry,
			Log:              logger.NewNop(),
		}),
	}

	seed := []models.Variant{
		{PatientId: "1", Chromosome: "4", Position: 89828149, ReferenceAllele: "C", AlternateAllele: "T", AssemblyId: assemblyId.GRCh38},
		{PatientId: "1", Chromosome: "6", Position: 161350208, ReferenceAllele: "C", AlternateAllele: "G", AssemblyId: assemblyId.GRCh38},
		{PatientId: "2", Chromosome: "X", Position: 1000, ReferenceAllele: "A", AlternateAllele: "G", AssemblyId: assemblyId.GRCh38},
	}
	for i := range seed {
		v, _, err := store.Upsert(context.Background(), &seed[i])
		require.NoError(t, err)
		ts.variants = append(ts.variants, *v)
	}

	res := annotations.Result{Source: annotationSource.ClinicalSignificance, Status: annotationStatus.Ok, Payload: map[string]string{"clinical_significance": "Pathogenic"}, Attempts: 1, FetchedAt: time.Now().UTC()}
	row, err := res.ToAnnotation(ts.variants[0].ID)
	require.NoError(t, err)
	_, err = store.AttachAnnotation(context.Background(), row)
	require.NoError(t, err)

	return ts
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestVariantsRoutes(t *testing.T) {
	ts := newTestServer(t)

	t.Run("filter by patient", func(t *testing.T) {
		rec := ts.get(t, "/variants?patient=Patient1")
		require.Equal(t, http.StatusOK, rec.Code)

		var dto dtos.VariantsResponseDTO
		decodeBody(t, rec, &dto)
		assert.Equal(t, int64(2), dto.Total)
		assert.Equal(t, 100, dto.Limit)
		for _, v := range dto.Results {
			assert.Equal(t, "1", v.PatientId)
		}
	})

	t.Run("filter by chromosome and bounds", func(t *testing.T) {
		rec := ts.get(t, "/variants?chromosome=chr4&lowerBound=89000000&upperBound=90000000")
		require.Equal(t, http.StatusOK, rec.Code)

		var dto dtos.VariantsResponseDTO
		decodeBody(t, rec, &dto)
		require.Len(t, dto.Results, 1)
		assert.Equal(t, 89828149, dto.Results[0].Position)
	})

	t.Run("invalid paging", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ts.get(t, "/variants?limit=0").Code)
		assert.Equal(t, http.StatusBadRequest, ts.get(t, "/variants?offset=-1").Code)
	})

	t.Run("inverted bounds", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ts.get(t, "/variants?lowerBound=10&upperBound=5").Code)
	})

	t.Run("by id", func(t *testing.T) {
		rec := ts.get(t, fmt.Sprintf("/variants/get/by/id?id=%d", ts.variants[0].ID))
		require.Equal(t, http.StatusOK, rec.Code)

		var v models.Variant
		decodeBody(t, rec, &v)
		assert.Equal(t, ts.variants[0].VariantKey, v.VariantKey)

		assert.Equal(t, http.StatusNotFound, ts.get(t, "/variants/get/by/id?id=9999").Code)
		assert.Equal(t, http.StatusBadRequest, ts.get(t, "/variants/get/by/id?id=abc").Code)
	})

	t.Run("unannotated", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ts.get(t, "/variants/unannotated").Code)
		assert.Equal(t, http.StatusBadRequest, ts.get(t, "/variants/unannotated?source=dbsnp").Code)

		rec := ts.get(t, "/variants/unannotated?source=clinical_significance")
		require.Equal(t, http.StatusOK, rec.Code)

		var dto dtos.VariantsResponseDTO
		decodeBody(t, rec, &dto)
		assert.Equal(t, int64(2), dto.Total)
		for _, v := range dto.Results {
			assert.NotEqual(t, ts.variants[0].VariantKey, v.VariantKey)
		}
	})

	t.Run("search without a mirror", func(t *testing.T) {
		assert.Equal(t, http.StatusServiceUnavailable, ts.get(t, "/variants/search?term=SNCA").Code)
	})
}

func TestAnnotationSummaryRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/annotations/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto dtos.AnnotationSummaryDTO
	decodeBody(t, rec, &dto)
	assert.Len(t, dto.Sources, 3)
	assert.Equal(t, int64(1), dto.Sources["clinical_significance"]["ok"])
	assert.Equal(t, int64(2), dto.Outstanding["clinical_significance"])
	assert.Equal(t, int64(3), dto.Outstanding["gene_nomenclature"])

	rec = ts.get(t, "/annotations/summary?sources=gene_nomenclature")
	require.Equal(t, http.StatusOK, rec.Code)
	dto = dtos.AnnotationSummaryDTO{}
	decodeBody(t, rec, &dto)
	assert.Len(t, dto.Sources, 1)
	assert.Contains(t, dto.Outstanding, "gene_nomenclature")
}

func TestIngestionAndBatchRoutes(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(ts.ingestion.VcfPath, "Patient3.vcf"), []byte(patientVcf), 0o644))

	t.Run("naming violation", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ts.get(t, "/variants/ingestion/run?fileNames=controls.vcf").Code)
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.get(t, "/variants/ingestion/run?fileNames=Patient9.vcf").Code)
	})

	t.Run("background load", func(t *testing.T) {
		rec := ts.get(t, "/variants/ingestion/run?fileNames=Patient3.vcf")
		require.Equal(t, http.StatusAccepted, rec.Code)

		var queued []ingest.LoadResponseDTO
		decodeBody(t, rec, &queued)
		require.Len(t, queued, 1)
		assert.Equal(t, "Patient3.vcf", queued[0].Filename)

		ts.ingestion.Wait()
		assert.Eventually(t, func() bool {
			request, ok := ts.ingestion.GetRequest(queued[0].Id.String())
			return ok && request.State == ingest.Done
		}, 2*time.Second, 10*time.Millisecond)

		request, _ := ts.ingestion.GetRequest(queued[0].Id.String())
		require.NotEmpty(t, request.BatchId)

		rec = ts.get(t, "/batches")
		require.Equal(t, http.StatusOK, rec.Code)
		var batches dtos.BatchesResponseDTO
		decodeBody(t, rec, &batches)
		require.Equal(t, 1, batches.Count)
		assert.Equal(t, "3", batches.Results[0].PatientId)

		rec = ts.get(t, "/batches/"+request.BatchId)
		require.Equal(t, http.StatusOK, rec.Code)
		var batch models.LoadBatch
		decodeBody(t, rec, &batch)
		assert.Equal(t, ingest.Done, batch.State)
		assert.Equal(t, 2, batch.New)

		rec = ts.get(t, "/variants/ingestion/requests")
		require.Equal(t, http.StatusOK, rec.Code)
		var requests []ingest.LoadRequest
		decodeBody(t, rec, &requests)
		assert.Len(t, requests, 1)
	})

	t.Run("unknown batch", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.get(t, "/batches/does-not-exist").Code)
	})
}

func TestServiceRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/service-info")
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]interface{}
	decodeBody(t, rec, &info)
	assert.Equal(t, "org.pvv:pvv", info["id"])

	rec = ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pvv_pipeline_batches_total")
}
