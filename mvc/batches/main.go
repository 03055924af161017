package batches

import (
	"errors"
	"fmt"
	"net/http"

	"pvv/api/contexts"
	"pvv/api/models/dtos"
	errorDtos "pvv/api/models/dtos/errors"
	"pvv/api/repositories/sqlite"

	"github.com/labstack/echo"
)

func BatchesGet(c echo.Context) error {
	gc := c.(*contexts.PvvContext)

	batches, err := gc.Store.GetBatches(c.Request().Context(), gc.Limit, gc.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, dtos.BatchesResponseDTO{
		Status:  http.StatusOK,
		Message: "Success",
		Count:   len(batches),
		Results: batches,
	})
}

// BatchGetById returns one load batch with its per-line parse errors
func BatchGetById(c echo.Context) error {
	gc := c.(*contexts.PvvContext)
	id := c.Param("id")

	batch, err := gc.Store.GetBatch(c.Request().Context(), id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorDtos.CreateSimpleNotFound(fmt.Sprintf("No batch with id %s", id)))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, batch)
}
