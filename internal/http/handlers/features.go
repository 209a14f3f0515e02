package handlers

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "clientpulse/internal/db"
)

// queryInt reads an integer query parameter, clamped to (0, max].
func queryInt(ctx *fasthttp.RequestCtx, name string, def, max int) int {
	if v := string(ctx.QueryArgs().Peek(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > max {
				return max
			}
			return n
		}
	}
	return def
}

// ListFeatures returns computed feature records for the dashboards,
// highest risk first. Supports ?category=, ?early_warning=1 and ?limit=.
func ListFeatures(gdb *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		limit := queryInt(ctx, "limit", 100, 500)

		q := gdb.Model(&dbpkg.ClientFeature{})
		if category := strings.ToUpper(string(ctx.QueryArgs().Peek("category"))); category != "" {
			q = q.Where("risk_category = ?", category)
		}
		if string(ctx.QueryArgs().Peek("early_warning")) == "1" {
			q = q.Where("early_warning_flag = ?", true)
		}

		var clients []dbpkg.ClientFeature
		if err := q.Order("predictive_risk_score DESC").Limit(limit).Find(&clients).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		jsonResponse(ctx, map[string]any{"clients": clients, "count": len(clients)})
	}
}

// ClientFeatureDetail returns one client's full feature record.
func ClientFeatureDetail(gdb *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		email, _ := ctx.UserValue("email").(string)
		email = strings.ToLower(email)
		if email == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "missing email")
			return
		}

		var record dbpkg.ClientFeature
		if err := gdb.Where("client_email = ?", email).First(&record).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				errResponse(ctx, fasthttp.StatusNotFound, "no features for "+email)
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		jsonResponse(ctx, record)
	}
}

// RiskSummary returns the distribution of clients across risk categories
// plus the early-warning count, the headline numbers on the staff dashboard.
func RiskSummary(gdb *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var rows []struct {
			RiskCategory string
			Count        int64
		}
		if err := gdb.Model(&dbpkg.ClientFeature{}).
			Select("risk_category, count(*) AS count").
			Group("risk_category").
			Find(&rows).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		distribution := map[string]int64{"CRITICAL": 0, "HIGH": 0, "MEDIUM": 0, "LOW": 0}
		var total int64
		for _, r := range rows {
			distribution[r.RiskCategory] = r.Count
			total += r.Count
		}

		var earlyWarnings int64
		if err := gdb.Model(&dbpkg.ClientFeature{}).
			Where("early_warning_flag = ?", true).
			Count(&earlyWarnings).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		jsonResponse(ctx, map[string]any{
			"total_clients":  total,
			"distribution":   distribution,
			"early_warnings": earlyWarnings,
		})
	}
}
