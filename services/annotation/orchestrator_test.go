package annotation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pvv/api/models"
	"pvv/api/models/annotations"
	"pvv/api/models/constants"
	annotationSource "pvv/api/models/constants/annotation-source"
	annotationStatus "pvv/api/models/constants/annotation-status"
	assemblyId "pvv/api/models/constants/assembly-id"
	"pvv/api/repositories/sqlite"
	"pvv/api/utils/logger"

	. "github.com/ahmetb/go-linq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClient struct {
	source constants.AnnotationSource
	calls  int32
	fetch  func(ctx context.Context, v *models.Variant) annotations.Result
}

func (f *fakeClient) Source() constants.AnnotationSource { return f.source }

func (f *fakeClient) Fetch(ctx context.Context, v *models.Variant) annotations.Result {
	atomic.AddInt32(&f.calls, 1)
	return f.fetch(ctx, v)
}

func okClient(source constants.AnnotationSource) *fakeClient {
	return &fakeClient{source: source, fetch: func(_ context.Context, v *models.Variant) annotations.Result {
		return annotations.Result{
			Source:    source,
			Status:    annotationStatus.Ok,
			Payload:   map[string]string{"variant": v.VariantKey},
			Attempts:  1,
			FetchedAt: time.Now().UTC(),
		}
	}}
}

func newOrchestratorStore(t *testing.T) *sqlite.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func seedVariants(t *testing.T, store *sqlite.Store, n int) []models.Variant {
	t.Helper()

	var out []models.Variant
	for i := 0; i < n; i++ {
		v, _, err := store.Upsert(context.Background(), &models.Variant{
			PatientId:       "1",
			Chromosome:      "4",
			Position:        1000 + i,
			ReferenceAllele: "C",
			AlternateAllele: "T",
		})
		require.NoError(t, err)
		out = append(out, *v)
	}
	return out
}

func TestOrchestratorIsolatesFailures(t *testing.T) {
	store := newOrchestratorStore(t)
	variants := seedVariants(t, store, 3)
	broken := variants[1].VariantKey

	clinvar := &fakeClient{source: annotationSource.ClinicalSignificance, fetch: func(_ context.Context, v *models.Variant) annotations.Result {
		if v.VariantKey == broken {
			return annotations.Result{Source: annotationSource.ClinicalSignificance, Status: annotationStatus.Error, Message: "HTTP 503", Attempts: 3}
		}
		return annotations.Result{Source: annotationSource.ClinicalSignificance, Status: annotationStatus.Ok, Payload: map[string]string{"gene_symbol": "SNCA"}, Attempts: 1}
	}}
	transcript := okClient(annotationSource.TranscriptInfo)
	hgnc := &fakeClient{source: annotationSource.GeneNomenclature, fetch: func(_ context.Context, v *models.Variant) annotations.Result {
		return annotations.Result{Source: annotationSource.GeneNomenclature, Status: annotationStatus.NotFound, Message: "no symbol"}
	}}

	o := NewOrchestrator(store, []Client{clinvar, transcript, hgnc}, 2, nil, nil, logger.NewNop())
	result, err := o.Annotate(context.Background(), variants, nil)
	require.NoError(t, err)

	assert.False(t, result.Stopped)
	assert.Equal(t, []string{broken}, result.FailedVariantKeys)

	cs := result.Sources[annotationSource.ClinicalSignificance]
	assert.Equal(t, 2, cs.Ok)
	assert.Equal(t, 1, cs.Error)
	assert.Equal(t, int64(1), cs.Outstanding)

	ti := result.Sources[annotationSource.TranscriptInfo]
	assert.Equal(t, 3, ti.Ok)
	assert.Equal(t, int64(0), ti.Outstanding)

	gn := result.Sources[annotationSource.GeneNomenclature]
	assert.Equal(t, 3, gn.NotFound)
	assert.Equal(t, int64(3), gn.Outstanding)

	// every pair got exactly one row, failures included
	var rows []models.Annotation
	require.NoError(t, store.DB.Find(&rows).Error)
	assert.Len(t, rows, 9)
	assert.Equal(t, 1, From(rows).WhereT(func(a models.Annotation) bool {
		return a.Status == annotationStatus.Error
	}).Count())
}

func TestOrchestratorSkipsOkPairs(t *testing.T) {
	store := newOrchestratorStore(t)
	variants := seedVariants(t, store, 2)

	transcript := okClient(annotationSource.TranscriptInfo)
	o := NewOrchestrator(store, []Client{transcript}, 2, nil, nil, nil)

	sources := []constants.AnnotationSource{annotationSource.TranscriptInfo}
	_, err := o.Annotate(context.Background(), variants, sources)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&transcript.calls))

	again, err := o.Annotate(context.Background(), variants, sources)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&transcript.calls))
	assert.Equal(t, 2, again.Sources[annotationSource.TranscriptInfo].Skipped)
	assert.Zero(t, again.Sources[annotationSource.TranscriptInfo].Ok)
}

func TestOrchestratorRetryThenSucceed(t *testing.T) {
	store := newOrchestratorStore(t)
	variants := seedVariants(t, store, 1)
	v := variants[0]

	mock, opts := newMockTransport(t)
	var searches int32
	mock.RegisterResponder(http.MethodGet, clinVarBase+"/esearch.fcgi", func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&searches, 1) <= 2 {
			return hangingResponder(req)
		}
		return httpmock.NewStringResponse(http.StatusOK, `{"esearchresult": {"idlist": ["7"]}}`), nil
	})
	mock.RegisterResponder(http.MethodGet, clinVarBase+"/esummary.fcgi", httpmock.NewStringResponder(http.StatusOK, fmt.Sprintf(`{
		"result": {"uids": ["7"], "7": {
			"uid": "7", "accession": "VCV7", "title": "test",
			"germline_classification": {"description": "Benign", "review_status": "criteria provided, single submitter"},
			"variation_set": [{"canonical_spdi": "NC_000004.12:%d:C:T"}]
		}}
	}`, v.Position-1)))

	clinvar := NewClinVarClient(clinVarBase, assemblyId.GRCh38, opts)
	o := NewOrchestrator(store, []Client{clinvar}, 1, nil, nil, nil)

	result, err := o.Annotate(context.Background(), variants, []constants.AnnotationSource{annotationSource.ClinicalSignificance})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sources[annotationSource.ClinicalSignificance].Ok)
	assert.Empty(t, result.FailedVariantKeys)

	var rows []models.Annotation
	require.NoError(t, store.DB.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, annotationStatus.Ok, rows[0].Status)
	assert.Equal(t, 4, rows[0].Attempts)
}

func TestOrchestratorUnknownSource(t *testing.T) {
	o := NewOrchestrator(newMemoryStore(), nil, 1, nil, nil, nil)
	_, err := o.Annotate(context.Background(), nil, []constants.AnnotationSource{annotationSource.GeneNomenclature})
	assert.Error(t, err)
}

// memoryStore keeps annotations in a map so no database goroutines linger
type memoryStore struct {
	mux  sync.Mutex
	rows map[string]*models.Annotation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]*models.Annotation{}}
}

func (m *memoryStore) key(variantId uint, source constants.AnnotationSource) string {
	return fmt.Sprintf("%d/%s", variantId, source)
}

func (m *memoryStore) OkSources(_ context.Context, ids []uint) (map[uint]map[constants.AnnotationSource]bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	out := map[uint]map[constants.AnnotationSource]bool{}
	for _, id := range ids {
		for _, src := range annotationSource.All() {
			if a, ok := m.rows[m.key(id, src)]; ok && a.Status == annotationStatus.Ok {
				if out[id] == nil {
					out[id] = map[constants.AnnotationSource]bool{}
				}
				out[id][src] = true
			}
		}
	}
	return out, nil
}

func (m *memoryStore) AttachAnnotation(_ context.Context, a *models.Annotation) (bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	k := m.key(a.VariantID, a.Source)
	if existing, ok := m.rows[k]; ok && !annotationStatus.Supersedes(a.Status, existing.Status) {
		return false, nil
	}
	m.rows[k] = a
	return true, nil
}

func (m *memoryStore) CountUnannotated(_ context.Context, source constants.AnnotationSource) (int64, error) {
	return 0, nil
}

func (m *memoryStore) count() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.rows)
}

func TestOrchestratorCooperativeStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newMemoryStore()

	var variants []models.Variant
	for i := 1; i <= 5; i++ {
		variants = append(variants, models.Variant{ID: uint(i), VariantKey: fmt.Sprintf("1:4:%d:C>T", i)})
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce sync.Once
	var ctxErrInFlight atomic.Value

	client := &fakeClient{source: annotationSource.TranscriptInfo, fetch: func(ctx context.Context, v *models.Variant) annotations.Result {
		startOnce.Do(func() { close(started) })
		<-release
		ctxErrInFlight.Store(fmt.Sprint(ctx.Err()))
		return annotations.Result{Source: annotationSource.TranscriptInfo, Status: annotationStatus.Ok, Attempts: 1}
	}}

	o := NewOrchestrator(store, []Client{client}, 1, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *BatchResult)
	go func() {
		res, err := o.Annotate(ctx, variants, []constants.AnnotationSource{annotationSource.TranscriptInfo})
		assert.NoError(t, err)
		done <- res
	}()

	<-started
	cancel()
	close(release)
	result := <-done

	assert.True(t, result.Stopped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.calls))
	assert.Equal(t, 1, result.Sources[annotationSource.TranscriptInfo].Ok)
	assert.Equal(t, 1, store.count())
	// the in-flight fetch ran on a context detached from cancellation
	assert.Equal(t, "<nil>", ctxErrInFlight.Load())
}

func TestOrchestratorRecoversClientPanics(t *testing.T) {
	store := newMemoryStore()
	client := &fakeClient{source: annotationSource.TranscriptInfo, fetch: func(context.Context, *models.Variant) annotations.Result {
		panic("boom")
	}}

	o := NewOrchestrator(store, []Client{client}, 1, nil, nil, nil)
	result, err := o.Annotate(context.Background(), []models.Variant{{ID: 1, VariantKey: "k"}}, []constants.AnnotationSource{annotationSource.TranscriptInfo})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sources[annotationSource.TranscriptInfo].Error)
	assert.Equal(t, []string{"k"}, result.FailedVariantKeys)
}
