package apistats

import (
	"context"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratanotify/internal/app/features/errors"
	apistatsstore "github.com/dalemusser/stratanotify/internal/app/store/apistats"
	apistatsystem "github.com/dalemusser/stratanotify/internal/app/system/apistats"
	"github.com/dalemusser/stratanotify/internal/app/system/jsonutil"
	"github.com/dalemusser/stratanotify/internal/app/system/normalize"
	"github.com/dalemusser/stratanotify/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// StatsReader reads recorded buckets. *apistatsstore.Store implements it.
type StatsReader interface {
	GetSummary(ctx context.Context, startTime, endTime time.Time) ([]apistatsstore.Summary, error)
	GetRange(ctx context.Context, statType apistatsstore.StatType, startTime, endTime time.Time) ([]apistatsstore.Bucket, error)
}

// Handler serves API stats.
type Handler struct {
	stats    StatsReader
	recorder *apistatsystem.Recorder
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a new API stats Handler.
func NewHandler(stats StatsReader, recorder *apistatsystem.Recorder, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		stats:    stats,
		recorder: recorder,
		errLog:   errLog,
		logger:   logger,
		now:      time.Now,
	}
}

// ServeStats returns summaries and per-type series for ?range= (default 24h).
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	timeRange := normalize.QueryParam(r.URL.Query().Get("range"))
	if timeRange == "" {
		timeRange = "24h"
	}
	length, ok := rangeDurations[timeRange]
	if !ok {
		jsonutil.BadRequest(w, "range must be one of 1h, 6h, 24h, 7d, 30d")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	end := h.now().UTC()
	start := end.Add(-length)

	summaries, err := h.stats.GetSummary(ctx, start, end)
	if err != nil {
		h.errLog.Log(r, "failed to load API stats summary", err)
		jsonutil.InternalError(w, "failed to load API stats")
		return
	}

	resp := Response{
		Range:     timeRange,
		Start:     start,
		End:       end,
		Bucket:    h.recorder.BucketDuration().String(),
		Summaries: make([]SummaryView, 0, len(summaries)),
		Series:    make(map[string][]DataPoint),
	}

	for _, s := range summaries {
		sv := SummaryView{
			StatType:      string(s.StatType),
			Label:         StatTypeLabel(s.StatType),
			TotalRequests: s.TotalRequests,
			TotalErrors:   s.TotalErrors,
			AvgMs:         s.AvgMs,
			MinMs:         s.MinMs,
			MaxMs:         s.MaxMs,
		}
		if s.TotalRequests > 0 {
			sv.ErrorRate = float64(s.TotalErrors) / float64(s.TotalRequests) * 100
		}
		resp.Summaries = append(resp.Summaries, sv)
	}

	for _, st := range []apistatsstore.StatType{apistatsstore.StatTypeListTemplates, apistatsstore.StatTypeGetTemplate} {
		resp.Series[string(st)] = h.series(ctx, st, start, end)
	}

	jsonutil.OK(w, resp)
}

// series returns the buckets for one stat type. Errors are logged and yield
// an empty series so the summary still renders.
func (h *Handler) series(ctx context.Context, statType apistatsstore.StatType, start, end time.Time) []DataPoint {
	buckets, err := h.stats.GetRange(ctx, statType, start, end)
	if err != nil {
		h.logger.Warn("failed to load API stats series",
			zap.String("stat_type", string(statType)),
			zap.Error(err))
		return []DataPoint{}
	}

	points := make([]DataPoint, len(buckets))
	for i, b := range buckets {
		points[i] = DataPoint{
			Timestamp: b.Bucket,
			Requests:  b.Requests,
			Errors:    b.Errors,
			AvgMs:     b.AvgMs(),
			MinMs:     b.MinMs,
			MaxMs:     b.MaxMs,
		}
	}
	return points
}

type bucketInput struct {
	Bucket string `json:"bucket"`
}

// HandleSetBucket changes the bucket duration used for new recordings.
func (h *Handler) HandleSetBucket(w http.ResponseWriter, r *http.Request) {
	var in bucketInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if !isBucketOption(in.Bucket) {
		jsonutil.BadRequest(w, "unsupported bucket duration")
		return
	}

	d, err := time.ParseDuration(in.Bucket)
	if err != nil {
		jsonutil.BadRequest(w, "unsupported bucket duration")
		return
	}
	h.recorder.SetBucketDuration(d)

	h.logger.Info("API stats bucket duration changed", zap.String("bucket", in.Bucket))
	jsonutil.OK(w, map[string]string{"bucket": d.String()})
}
