package mvc

import (
	"pvv/api/contexts"
	"pvv/api/repositories/sqlite"

	"github.com/labstack/echo"
)

// RetrieveCommonElements collects the store and the variant filter the
// middleware calibrated for this request
func RetrieveCommonElements(c echo.Context) (*sqlite.Store, sqlite.VariantFilter) {
	gc := c.(*contexts.PvvContext)

	return gc.Store, sqlite.VariantFilter{
		PatientId:  gc.PatientId,
		Chromosome: gc.Chromosome,
		AssemblyId: gc.AssemblyId,
		LowerBound: gc.LowerBound,
		UpperBound: gc.UpperBound,
		Limit:      gc.Limit,
		Offset:     gc.Offset,
		Sort:       gc.Sort,
	}
}
