package variants

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pvv/api/contexts"
	"pvv/api/models/dtos"
	errorDtos "pvv/api/models/dtos/errors"
	"pvv/api/models/ingest"
	"pvv/api/mvc"
	"pvv/api/repositories/sqlite"
	"pvv/api/services"
	"pvv/api/services/vcf"

	"github.com/labstack/echo"
)

func VariantsGet(c echo.Context) error {
	gc := c.(*contexts.PvvContext)
	store, filter := mvc.RetrieveCommonElements(c)

	variants, total, err := store.GetVariants(c.Request().Context(), filter)
	if err != nil {
		gc.Log.Error("listing variants failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, dtos.VariantsResponseDTO{
		Status:  http.StatusOK,
		Message: "Success",
		Total:   total,
		Count:   len(variants),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		Results: variants,
	})
}

func VariantsGetById(c echo.Context) error {
	gc := c.(*contexts.PvvContext)

	idQP := c.QueryParam("id")
	id, err := strconv.ParseUint(idQP, 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, errorDtos.CreateSimpleBadRequest("Missing or invalid 'id' query parameter!"))
	}

	variant, err := gc.Store.GetVariantById(c.Request().Context(), uint(id))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorDtos.CreateSimpleNotFound(fmt.Sprintf("No variant with id %d", id)))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, variant)
}

func VariantsGetUnannotated(c echo.Context) error {
	gc := c.(*contexts.PvvContext)
	source := gc.Sources[0]

	variants, err := gc.Store.GetUnannotated(c.Request().Context(), source, gc.PatientId)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, dtos.VariantsResponseDTO{
		Status:  http.StatusOK,
		Message: fmt.Sprintf("Variants without an ok %s annotation", source),
		Total:   int64(len(variants)),
		Count:   len(variants),
		Results: variants,
	})
}

func VariantsSearch(c echo.Context) error {
	gc := c.(*contexts.PvvContext)

	if gc.Search == nil {
		return c.JSON(http.StatusServiceUnavailable, errorDtos.CreateSimpleServiceUnavailable("Search is not enabled on this instance"))
	}

	term := strings.TrimSpace(c.QueryParam("term"))
	if len(term) == 0 {
		return c.JSON(http.StatusBadRequest, errorDtos.CreateSimpleBadRequest("Missing 'term' query parameter!"))
	}

	result, err := gc.Search.SearchVariants(c.Request().Context(), term, gc.PatientId, gc.Limit)
	if err != nil {
		gc.Log.Error("search failed", "term", term, "error", err)
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, dtos.VariantSearchResponseDTO{
		Status:  http.StatusOK,
		Message: "Success",
		Term:    term,
		Total:   result.Total,
		Count:   len(result.Documents),
		Results: result.Documents,
	})
}

func GetVariantsOverview(c echo.Context) error {
	gc := c.(*contexts.PvvContext)
	ctx := c.Request().Context()

	byPatient, err := gc.Store.CountByPatient(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}
	patients, err := gc.Store.GetPatientIds(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}
	counts, err := gc.Store.AnnotationCounts(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
	}

	var total int64
	for _, n := range byPatient {
		total += n
	}

	return c.JSON(http.StatusOK, dtos.VariantsOverviewDTO{
		Patients:   patients,
		Variants:   total,
		ByPatient:  byPatient,
		Annotation: counts,
	})
}

// VariantsIngest queues background loads for the comma separated
// `fileNames` found in the input directory
func VariantsIngest(c echo.Context) error {
	gc := c.(*contexts.PvvContext)

	fileNamesQP := c.QueryParam("fileNames")
	if len(fileNamesQP) == 0 {
		return c.JSON(http.StatusBadRequest, errorDtos.CreateSimpleBadRequest("Missing 'fileNames' query parameter!"))
	}

	var fileNames []string
	if fileNamesQP == "all" {
		files, err := services.ListVcfFiles(gc.Config.Api.VcfPath)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, errorDtos.CreateSimpleInternalServerError(err.Error()))
		}
		fileNames = files
	} else {
		fileNames = strings.Split(fileNamesQP, ",")
	}

	force := c.QueryParam("force") == "true"
	retryOutstanding := c.QueryParam("retryOutstanding") == "true"

	responses := []ingest.LoadResponseDTO{}
	for _, fileName := range fileNames {
		fileName = strings.TrimSpace(fileName)
		if len(fileName) == 0 {
			continue
		}

		request, err := gc.IngestionService.Submit(fileName, force, retryOutstanding)
		if err != nil && len(fileNames) == 1 {
			return c.JSON(statusForLoadError(err), errorDtos.CreateSimpleError(statusForLoadError(err), err.Error()))
		}
		if err != nil {
			responses = append(responses, ingest.LoadResponseDTO{
				Filename: fileName,
				State:    ingest.Error,
				Message:  err.Error(),
			})
			continue
		}

		responses = append(responses, ingest.LoadResponseDTO{
			Id:       request.Id,
			Filename: request.Filename,
			State:    request.State,
			Message:  "Successfully queued..",
		})
	}

	return c.JSON(http.StatusAccepted, responses)
}

func GetAllVariantIngestionRequests(c echo.Context) error {
	gc := c.(*contexts.PvvContext)
	return c.JSON(http.StatusOK, gc.IngestionService.GetRequests())
}

// statusForLoadError maps load submission failures to HTTP statuses
func statusForLoadError(err error) int {
	switch {
	case errors.Is(err, vcf.ErrNamingConvention):
		return http.StatusBadRequest
	case errors.Is(err, vcf.ErrFileUnreadable):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyRunning):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
