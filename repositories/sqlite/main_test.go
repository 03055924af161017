package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"pvv/api/models"
	"pvv/api/utils/logger"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() { store.Close() })
	return store
}

func newVariant(patientId string, chrom string, pos int, ref string, alt string) *models.Variant {
	return &models.Variant{
		PatientId:       patientId,
		Chromosome:      chrom,
		Position:        pos,
		ReferenceAllele: ref,
		AlternateAllele: alt,
	}
}

func mustUpsert(t *testing.T, s *Store, v *models.Variant) *models.Variant {
	t.Helper()
	stored, _, err := s.Upsert(context.Background(), v)
	require.NoError(t, err)
	return stored
}
