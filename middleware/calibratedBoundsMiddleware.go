package middleware

import (
	"net/http"
	"strconv"

	"pvv/api/contexts"
	"pvv/api/models/constants/sort"

	"github.com/labstack/echo"
)

const maxPageSize = 1000

func MandateCalibratedBounds(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		gc := c.(*contexts.PvvContext)

		var (
			lowerBound int
			upperBound int

			lowerBoundPointer *int // simulate "nullable" int
			upperBoundPointer *int
		)

		// check for a 'lowerBound' query paramter
		lowerBoundQP := c.QueryParam("lowerBound")
		if len(lowerBoundQP) > 0 {
			lb, conversionErr := strconv.Atoi(lowerBoundQP)
			if conversionErr != nil || lb <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'lowerBound' query parameter!")
			}
			lowerBound = lb
			lowerBoundPointer = &lowerBound
		}

		// check for an 'upperBound' query paramter
		upperBoundQP := c.QueryParam("upperBound")
		if len(upperBoundQP) > 0 {
			ub, conversionErr := strconv.Atoi(upperBoundQP)
			if conversionErr != nil || ub <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'upperBound' query parameter!")
			}
			upperBound = ub
			upperBoundPointer = &upperBound
		}

		// either bound may be given alone, but both must be balanced
		if upperBoundPointer != nil && lowerBoundPointer != nil && upperBound < lowerBound {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid lower and upper bounds!")
		}

		gc.LowerBound = lowerBound
		gc.UpperBound = upperBound
		return next(gc)
	}
}

/*
Echo middleware to prepare the context for optional `limit`, `offset` and `sortByPosition` paging parameters
*/
func CalibratePaging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		gc := c.(*contexts.PvvContext)

		gc.Limit = 100
		if limitQP := c.QueryParam("limit"); len(limitQP) > 0 {
			limit, err := strconv.Atoi(limitQP)
			if err != nil || limit <= 0 || limit > maxPageSize {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'limit' query parameter! Expected 1 to 1000")
			}
			gc.Limit = limit
		}

		if offsetQP := c.QueryParam("offset"); len(offsetQP) > 0 {
			offset, err := strconv.Atoi(offsetQP)
			if err != nil || offset < 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'offset' query parameter!")
			}
			gc.Offset = offset
		}

		gc.Sort = sort.Ascending
		if sortQP := c.QueryParam("sortByPosition"); len(sortQP) > 0 {
			if !sort.IsKnownSortDirection(sortQP) {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'sortByPosition' query parameter! Expected asc or desc")
			}
			gc.Sort = sort.CastToSortDirection(sortQP)
		}

		return next(gc)
	}
}
