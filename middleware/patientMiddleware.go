package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"pvv/api/contexts"

	"github.com/labstack/echo"
)

var patientIdPattern = regexp.MustCompile(`(?i)^(patient)?(\d+)$`)

/*
Echo middleware to prepare the context for an optionally provided `patient` HTTP query parameter;
both `7` and `Patient7` are accepted
*/
func CalibrateOptionalPatientIdAttribute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		gc := c.(*contexts.PvvContext)

		patientQP := strings.TrimSpace(c.QueryParam("patient"))
		if len(patientQP) == 0 {
			return next(gc)
		}

		matches := patientIdPattern.FindStringSubmatch(patientQP)
		if matches == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'patient' query parameter!")
		}

		id := strings.TrimLeft(matches[2], "0")
		if id == "" {
			id = "0"
		}
		gc.PatientId = id
		return next(gc)
	}
}
