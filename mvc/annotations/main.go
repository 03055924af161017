package annotations

import (
	"net/http"

	"pvv/api/contexts"
	annotationSource "pvv/api/models/constants/annotation-source"
	"pvv/api/models/dtos"
	errorDtos "pvv/api/models/dtos/errors"

	"github.com/labstack/echo"
)

// GetAnnotationSummary reports stored annotation counts per source and status
// alongside what is still outstanding
func GetAnnotationSummary(c echo.Context) error {
	gc := c.(*contexts.PvvContext)
	ctx := c.Request().Context()

	counts, err := gc.Store.AnnotationCounts(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}

	summary := dtos.AnnotationSummaryDTO{
		Sources:     map[string]dtos.AnnotationStatusCounts{},
		Outstanding: map[string]int64{},
	}
	sources := gc.Sources
	if len(sources) == 0 {
		sources = annotationSource.All()
	}
	for _, src := range sources {
		summary.Sources[string(src)] = dtos.AnnotationStatusCounts{}

		n, err := gc.Store.CountUnannotated(ctx, src)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
		}
		summary.Outstanding[string(src)] = n
	}
	for _, count := range counts {
		bySource, ok := summary.Sources[string(count.Source)]
		if !ok {
			continue
		}
		bySource[string(count.Status)] = count.Count
	}

	if gc.SanitationService != nil {
		if last := gc.SanitationService.LastRun(); last != nil {
			summary.LastRefresh = last
		}
	}

	return c.JSON(http.StatusOK, summary)
}
