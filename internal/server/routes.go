package server

import (
	"github.com/OFFIS-RIT/taxo/internal/server/middleware"
	"github.com/OFFIS-RIT/taxo/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Ontology registry routes
	apiRoutes.GET("/ontology/types", routes.GetTypesHandler, middleware.RequirePermission("ontology.view"))
	apiRoutes.GET("/ontology/types/:id", routes.GetTypeHandler, middleware.RequirePermission("ontology.view"))
	apiRoutes.GET("/ontology/versions", routes.GetVersionsHandler, middleware.RequirePermission("ontology.view"))

	// Lifecycle routes
	apiRoutes.POST("/ontology/scan", routes.PostScanHandler, middleware.RequirePermission("ontology.scan"))
	apiRoutes.POST("/ontology/instances", routes.PostInstancesHandler, middleware.RequirePermission("ontology.ingest"))
}
