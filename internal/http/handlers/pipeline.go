package handlers

import (
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"clientpulse/internal/pipeline"
)

// RunPipeline triggers one full feature-extraction and risk-scoring run.
// The request is parameterless; the external scheduler owns when and how
// often it fires, and retries simply rerun the whole pipeline.
func RunPipeline(gdb *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		summary, err := pipeline.Run(ctx, gdb)
		if err != nil {
			pipelineRunsTotal.WithLabelValues("error").Inc()
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			jsonResponse(ctx, pipeline.Summary{Success: false, Error: err.Error()})
			return
		}

		pipelineRunsTotal.WithLabelValues("success").Inc()
		pipelineDurationSeconds.Observe(time.Since(start).Seconds())
		pipelineClientsProcessed.Set(float64(summary.ClientsProcessed))

		jsonResponse(ctx, summary)
	}
}

// LastRuns lists recent pipeline runs, newest first, for the operations page.
func LastRuns(gdb *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		limit := queryInt(ctx, "limit", 20, 200)

		var runs []struct {
			RunID            string    `json:"run_id"`
			StartedAt        time.Time `json:"started_at"`
			FinishedAt       time.Time `json:"finished_at"`
			DurationMs       int64     `json:"duration_ms"`
			ClientsProcessed int       `json:"clients_processed"`
			Succeeded        bool      `json:"succeeded"`
			Error            string    `json:"error,omitempty"`
		}
		if err := gdb.Table("pipeline_runs").
			Order("started_at DESC").
			Limit(limit).
			Find(&runs).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		jsonResponse(ctx, map[string]any{"runs": runs})
	}
}
