package middleware

import (
	"net/http"

	"pvv/api/contexts"
	"pvv/api/models/constants/chromosome"

	"github.com/labstack/echo"
)

/*
Echo middleware to prepare the context for an optionally provided `chromosome` HTTP query parameter
*/
func CalibrateOptionalChromosomeAttribute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		gc := c.(*contexts.PvvContext)

		chromQP := c.QueryParam("chromosome")
		if len(chromQP) == 0 {
			return next(gc)
		}

		if !chromosome.IsValidHumanChromosome(chromQP) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'chromosome' query parameter! Expected 1-22, X, Y or MT")
		}

		gc.Chromosome = chromosome.Normalize(chromQP)
		return next(gc)
	}
}
