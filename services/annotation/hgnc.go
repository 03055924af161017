package annotation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pvv/api/models"
	"pvv/api/models/annotations"
	annotationSource "pvv/api/models/constants/annotation-source"

	"github.com/patrickmn/go-cache"
)

type (
	// SymbolLookup finds a gene symbol already stored for a variant
	SymbolLookup interface {
		GeneSymbol(ctx context.Context, variantId uint) (string, error)
	}

	HgncClient struct {
		*httpSource
		Symbols SymbolLookup
		cache   *cache.Cache
	}

	cachedGene struct {
		gene  *annotations.GeneNomenclature
		found bool
	}
)

func NewHgncClient(baseUrl string, symbols SymbolLookup, cacheTTL time.Duration, opts ClientOptions) *HgncClient {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &HgncClient{
		httpSource: newHttpSource(annotationSource.GeneNomenclature, strings.TrimRight(baseUrl, "/"), opts),
		Symbols:    symbols,
		cache:      cache.New(cacheTTL, 2*cacheTTL),
	}
}

// ResolveSymbol prefers the INFO hint, then any symbol found by another source
func (h *HgncClient) ResolveSymbol(ctx context.Context, v *models.Variant) (string, error) {
	if sym := strings.TrimSpace(v.GeneHint); sym != "" {
		return sym, nil
	}
	if h.Symbols == nil || v.ID == 0 {
		return "", nil
	}
	return h.Symbols.GeneSymbol(ctx, v.ID)
}

func (h *HgncClient) Fetch(ctx context.Context, v *models.Variant) annotations.Result {
	symbol, err := h.ResolveSymbol(ctx, v)
	if err != nil {
		return h.failed(v, &PermanentError{Err: fmt.Errorf("resolving gene symbol: %w", err)}, 0)
	}
	if symbol == "" {
		return h.notFound("no gene symbol could be resolved for the variant", 0)
	}

	key := strings.ToUpper(symbol)
	if cached, ok := h.cache.Get(key); ok {
		entry := cached.(cachedGene)
		if entry.found {
			return h.ok(entry.gene, 0)
		}
		return h.notFound(fmt.Sprintf("%s: %s is not an HGNC symbol", ErrNotFound, symbol), 0)
	}

	gene, attempts, err := h.lookup(ctx, symbol)
	if err != nil {
		if isNotFound(err) {
			h.cache.SetDefault(key, cachedGene{found: false})
		}
		return h.failed(v, err, attempts)
	}

	h.cache.SetDefault(key, cachedGene{gene: gene, found: true})
	return h.ok(gene, attempts)
}

func (h *HgncClient) lookup(ctx context.Context, symbol string) (*annotations.GeneNomenclature, int, error) {
	total := 0
	for _, field := range []string{"symbol", "prev_symbol"} {
		gene, attempts, err := h.fetchBy(ctx, field, symbol)
		total += attempts
		if err != nil {
			return nil, total, err
		}
		if gene != nil {
			gene.QueriedSymbol = symbol
			gene.PreviousSymbol = field == "prev_symbol"
			gene.GeneSymbol = gene.Symbol
			return gene, total, nil
		}
	}
	return nil, total, fmt.Errorf("%w: %s is not an HGNC symbol", ErrNotFound, symbol)
}

// fetchBy returns nil without error when nothing matched
func (h *HgncClient) fetchBy(ctx context.Context, field string, symbol string) (*annotations.GeneNomenclature, int, error) {
	endpoint := fmt.Sprintf("/fetch/%s/%s", field, url.PathEscape(symbol))

	res, attempts, err := h.getJSON(ctx, endpoint, nil)
	if err != nil {
		return nil, attempts, err
	}

	numFound, ok := res.Path("response.numFound").Data().(float64)
	if !ok {
		return nil, attempts, malformed("HGNC response.numFound missing")
	}
	if numFound == 0 {
		return nil, attempts, nil
	}

	docs, _ := res.Path("response.docs").Children()
	if len(docs) == 0 {
		return nil, attempts, malformed("HGNC response.docs empty")
	}

	var gene annotations.GeneNomenclature
	if err := decode(docs[0].Data(), &gene); err != nil {
		return nil, attempts, malformed("HGNC document: %v", err)
	}
	return &gene, attempts, nil
}
