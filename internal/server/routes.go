package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"

	"github.com/agorgl/blocky/internal/index"
	"github.com/agorgl/blocky/internal/server/handlers/listing"
	"github.com/agorgl/blocky/internal/server/handlers/patch"
	"github.com/agorgl/blocky/internal/version"
)

func SetupRoutes(indexSvc *index.Service) http.Handler {
	r := gin.New()

	listingH := listing.New(indexSvc)
	patchH := patch.New(indexSvc)

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
	}))
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/listing", listingH.GetListing)
		v1.POST("/patch", patchH.ComputePatch)
	}

	return r
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, "blocky delta patch server")
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}
