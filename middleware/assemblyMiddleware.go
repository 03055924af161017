package middleware

import (
	"net/http"

	"pvv/api/contexts"
	assid "pvv/api/models/constants/assembly-id"

	"github.com/labstack/echo"
)

/*
Echo middleware to prepare the context for an optionally provided `assemblyId` HTTP query parameter
*/
func CalibrateOptionalAssemblyIdAttribute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		gc := c.(*contexts.PvvContext)

		assemblyId := c.QueryParam("assemblyId")
		if len(assemblyId) == 0 {
			return next(gc)
		}
		if !assid.IsKnownAssemblyId(assemblyId) {
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown assemblyId!")
		}

		gc.AssemblyId = assid.CastToAssemblyId(assemblyId)
		return next(gc)
	}
}
