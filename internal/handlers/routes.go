package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/fieldwatch/internal/services"
)

// Register mounts the health endpoints and the v1 API on router.
func Register(router gin.IRouter, service services.DashboardService, env string) {
	health := NewHealthHandler(service, env)
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)

	dashboard := NewDashboardHandler(service)
	parcels := NewParcelHandler(service)
	indices := NewIndexHandler(service)
	zones := NewZoneHandler(service)
	rasters := NewRasterHandler(service)
	metadata := NewMetadataHandler(service)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", health.Info)
		v1.GET("/dashboard", dashboard.Dashboard)

		p := v1.Group("/parcels")
		{
			p.GET("", parcels.Parcel)
			p.GET("/value-at-point", parcels.ValueAtPoint)
		}

		i := v1.Group("/indices")
		{
			i.GET("/view", indices.View)
			i.GET("/latest", indices.Latest)
			i.GET("/timeseries", indices.TimeSeries)
			i.GET("/measurements", indices.Measurements)
			i.GET("/export", indices.Export)
		}

		z := v1.Group("/zones")
		{
			z.GET("", zones.Zones)
			z.GET("/geometries", zones.Geometries)
		}

		r := v1.Group("/rasters")
		{
			r.POST("/refresh", rasters.Refresh)
			r.GET("/status", rasters.Status)
		}

		v1.GET("/metadata/:key", metadata.Get)
	}
}
