package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"clientpulse/internal/config"
	"clientpulse/internal/db"
	"clientpulse/internal/http/handlers"
	appmw "clientpulse/internal/http/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.EnsureBootstrapAPIKey(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap API key: %v", err)
	}

	db.StartRetentionWorker(sqlDB, cfg.CallRetentionDays)

	handlers.InitPrometheusMetrics()

	r := router.New()

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.GET("/metrics", handlers.PrometheusExport())

	auth := appmw.BearerAuth(sqlDB)

	// Raw-source ingest for the upstream connectors.
	r.POST("/v1/sources/{source}", auth(handlers.SourceIngestHandler(sqlDB)))

	// Feature pipeline trigger; the external scheduler owns when it fires.
	r.POST("/v1/pipeline/run", auth(handlers.RunPipeline(sqlDB)))
	r.GET("/v1/pipeline/runs", auth(handlers.LastRuns(sqlDB)))

	// Read API for the staff dashboards.
	r.GET("/v1/features", auth(handlers.ListFeatures(sqlDB)))
	r.GET("/v1/features/{email}", auth(handlers.ClientFeatureDetail(sqlDB)))
	r.GET("/v1/risk/summary", auth(handlers.RiskSummary(sqlDB)))

	handler := handlers.RequestLogger(r.Handler)

	log.Printf("clientpulse listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
