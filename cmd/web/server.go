package web

import (
	"net/http"

	"pvv/api/contexts"
	gam "pvv/api/middleware"
	"pvv/api/models"
	serviceInfo "pvv/api/models/constants/service-info"
	"pvv/api/mvc/annotations"
	"pvv/api/mvc/batches"
	serviceInfoMvc "pvv/api/mvc/service-info"
	"pvv/api/mvc/variants"
	esRepo "pvv/api/repositories/elasticsearch"
	"pvv/api/repositories/sqlite"
	"pvv/api/services"
	"pvv/api/services/sanitation"
	"pvv/api/utils/logger"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	Config            *models.Config
	Store             *sqlite.Store
	Search            *esRepo.Repository
	IngestionService  *services.IngestionService
	SanitationService *sanitation.SanitationService
	Registry          *prometheus.Registry
	Log               *logger.Logger
}

// NewServer builds the echo instance with every route registered
func NewServer(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Configure Server
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.PUT, echo.POST, echo.DELETE},
	}))

	// -- Override handlers with the custom context
	//		to be able to provide variables and global singletons
	e.Use(func(h echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &contexts.PvvContext{
				Context:           c,
				Config:            deps.Config,
				Store:             deps.Store,
				Search:            deps.Search,
				IngestionService:  deps.IngestionService,
				SanitationService: deps.SanitationService,
				Log:               deps.Log,
			}
			return h(cc)
		}
	})

	// Begin MVC Routes
	// -- Root
	e.GET("/", func(c echo.Context) error {
		deps.Log.Debug("root hit")
		return c.JSON(http.StatusOK, serviceInfo.SERVICE_WELCOME)
	})

	// -- Service Info
	e.GET("/service-info", serviceInfoMvc.GetServiceInfo)

	// -- Metrics
	if deps.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// -- Variants
	e.GET("/variants", variants.VariantsGet,
		// middleware
		gam.CalibrateOptionalPatientIdAttribute,
		gam.CalibrateOptionalChromosomeAttribute,
		gam.CalibrateOptionalAssemblyIdAttribute,
		gam.MandateCalibratedBounds,
		gam.CalibratePaging)
	e.GET("/variants/overview", variants.GetVariantsOverview)
	e.GET("/variants/get/by/id", variants.VariantsGetById)
	e.GET("/variants/unannotated", variants.VariantsGetUnannotated,
		// middleware
		gam.MandateSourceAttribute,
		gam.CalibrateOptionalPatientIdAttribute)
	e.GET("/variants/search", variants.VariantsSearch,
		// middleware
		gam.CalibrateOptionalPatientIdAttribute,
		gam.CalibratePaging)

	e.GET("/variants/ingestion/run", variants.VariantsIngest)
	e.GET("/variants/ingestion/requests", variants.GetAllVariantIngestionRequests)

	// -- Batches
	e.GET("/batches", batches.BatchesGet,
		// middleware
		gam.CalibratePaging)
	e.GET("/batches/:id", batches.BatchGetById)

	// -- Annotations
	e.GET("/annotations/summary", annotations.GetAnnotationSummary,
		// middleware
		gam.CalibrateOptionalSourcesAttribute)

	return e
}
