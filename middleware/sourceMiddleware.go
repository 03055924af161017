package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"pvv/api/contexts"
	annotationSource "pvv/api/models/constants/annotation-source"

	"github.com/labstack/echo"
)

/*
Echo middleware to ensure a single valid `source` HTTP query parameter was provided
*/
func MandateSourceAttribute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		gc := c.(*contexts.PvvContext)

		sourceQP := c.QueryParam("source")
		if len(sourceQP) == 0 || !annotationSource.IsKnownAnnotationSource(sourceQP) {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Missing or unknown 'source'! Expected one of %v", annotationSource.All()))
		}

		gc.Sources = append(gc.Sources, annotationSource.CastToAnnotationSource(sourceQP))
		return next(gc)
	}
}

/*
Echo middleware to prepare the context for an optionally provided comma separated `sources` HTTP query parameter
*/
func CalibrateOptionalSourcesAttribute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		gc := c.(*contexts.PvvContext)

		var names []string
		if sourcesQP := c.QueryParam("sources"); len(sourcesQP) > 0 {
			names = strings.Split(sourcesQP, ",")
		}

		sources, ok := annotationSource.Parse(names)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown value in 'sources' query parameter!")
		}

		gc.Sources = sources
		return next(gc)
	}
}
