package contexts

import (
	"pvv/api/models"
	"pvv/api/models/constants"
	esRepo "pvv/api/repositories/elasticsearch"
	"pvv/api/repositories/sqlite"
	"pvv/api/services"
	"pvv/api/services/sanitation"
	"pvv/api/utils/logger"

	"github.com/labstack/echo"
)

type (
	// "Helper" Context to pass into routes that need
	//  the store, the search mirror and other singletons
	PvvContext struct {
		echo.Context
		Config            *models.Config
		Store             *sqlite.Store
		Search            *esRepo.Repository
		IngestionService  *services.IngestionService
		SanitationService *sanitation.SanitationService
		Log               *logger.Logger

		// populated by middleware
		Chromosome string
		PatientId  string
		AssemblyId constants.AssemblyId
		Sources    []constants.AnnotationSource
		LowerBound int
		UpperBound int
		Limit      int
		Offset     int
		Sort       constants.SortDirection
	}
)
