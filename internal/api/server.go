// Package api is the HTTP boundary of the data explorer.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer/internal/config"
)

// NewServer builds the echo instance with middleware and routes.
func NewServer(cfg config.ServerConfig, h *Handler, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = JSONSerializer{}
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RequestID())
	e.Use(contextLogger(logger))
	e.Use(requestLogger())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zerolog.Ctx(c.Request().Context()).Error().Err(err).Bytes("stack", stack).Msg("panic recovered")
			return err
		},
	}))
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	RegisterRoutes(e, h)
	return e
}

// RegisterRoutes registers all API routes with the echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/", h.HandleRoot)
	e.GET("/health", h.HandleHealth)

	e.POST("/upload", h.HandleUpload)
	e.POST("/query", h.HandleQuery)
	e.POST("/summarize", h.HandleSummarize)
	e.GET("/summary/providers", h.HandleProviders)
	e.POST("/public-data", h.HandlePublicData)

	tables := e.Group("/tables")
	tables.GET("", h.HandleListTables)
	tables.GET("/:name", h.HandleDescribeTable)
	tables.DELETE("/:name", h.HandleDeleteTable)
	tables.GET("/:name/data", h.HandleTableData)
	tables.GET("/:name/export", h.HandleExportTable)
}
