package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "clientpulse/internal/db"
	httpctx "clientpulse/internal/http/ctx"
)

var (
	ingestRowsTotal          *prometheus.CounterVec
	pipelineRunsTotal        *prometheus.CounterVec
	pipelineDurationSeconds  prometheus.Histogram
	pipelineClientsProcessed prometheus.Gauge
)

func InitPrometheusMetrics() {
	ingestRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clientpulse",
			Name:      "ingest_rows_total",
			Help:      "Total number of raw rows ingested per source.",
		},
		[]string{"source", "connector"},
	)
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clientpulse",
			Name:      "pipeline_runs_total",
			Help:      "Total number of feature pipeline runs by outcome.",
		},
		[]string{"status"},
	)
	pipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clientpulse",
			Name:      "pipeline_duration_seconds",
			Help:      "Histogram of feature pipeline run durations in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	pipelineClientsProcessed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clientpulse",
			Name:      "pipeline_clients_processed",
			Help:      "Clients processed by the most recent pipeline run.",
		},
	)
	prometheus.MustRegister(ingestRowsTotal, pipelineRunsTotal, pipelineDurationSeconds, pipelineClientsProcessed)
}

// SourceIngestHandler accepts batches of raw rows pushed by the upstream
// connectors: POST /v1/sources/{source} with {"rows": [...]}. Sessions,
// packages, calls and deals are appended; contacts upsert by email so a
// CRM re-sync refreshes phone, CRM id and health zone in place.
func SourceIngestHandler(gdb *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		source, _ := ctx.UserValue("source").(string)

		var count int
		var err error
		switch source {
		case "sessions":
			count, err = ingestRows[dbpkg.TrainingSession](gdb, ctx.PostBody(), nil)
		case "packages":
			count, err = ingestRows[dbpkg.ClientPackage](gdb, ctx.PostBody(), nil)
		case "contacts":
			count, err = ingestRows[dbpkg.Contact](gdb, ctx.PostBody(), &clause.OnConflict{
				Columns:   []clause.Column{{Name: "email"}},
				UpdateAll: true,
			})
		case "calls":
			count, err = ingestRows[dbpkg.CallRecord](gdb, ctx.PostBody(), nil)
		case "deals":
			count, err = ingestRows[dbpkg.Deal](gdb, ctx.PostBody(), nil)
		default:
			errResponse(ctx, fasthttp.StatusNotFound, "unknown source "+strconv.Quote(source))
			return
		}

		if err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
				return
			}
			if _, ok := err.(*json.UnmarshalTypeError); ok {
				errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to persist rows")
			return
		}
		if count == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no rows provided")
			return
		}

		connector := ""
		if ak, ok := httpctx.APIKeyFromCtx(ctx); ok && ak != nil {
			connector = ak.Name
		}
		ingestRowsTotal.WithLabelValues(source, connector).Add(float64(count))

		ctx.SetStatusCode(fasthttp.StatusAccepted)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"status":"accepted","source":"` + source + `","count":` + strconv.Itoa(count) + `}`)
	}
}

type ingestPayload[T any] struct {
	Rows []T `json:"rows"`
}

func ingestRows[T any](gdb *gorm.DB, body []byte, onConflict *clause.OnConflict) (int, error) {
	var payload ingestPayload[T]
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, err
	}
	if len(payload.Rows) == 0 {
		return 0, nil
	}

	tx := gdb
	if onConflict != nil {
		tx = tx.Clauses(*onConflict)
	}
	if err := tx.Create(&payload.Rows).Error; err != nil {
		return 0, err
	}
	return len(payload.Rows), nil
}
