package apistats

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratanotify/internal/app/features/errors"
	apistatsstore "github.com/dalemusser/stratanotify/internal/app/store/apistats"
	apistatsystem "github.com/dalemusser/stratanotify/internal/app/system/apistats"
	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"github.com/dalemusser/stratanotify/internal/testutil"
	"go.uber.org/zap"
)

type fakeStats struct {
	summaries  []apistatsstore.Summary
	buckets    []apistatsstore.Bucket
	summaryErr error
	rangeErr   error
	start, end time.Time
}

func (f *fakeStats) GetSummary(ctx context.Context, startTime, endTime time.Time) ([]apistatsstore.Summary, error) {
	f.start, f.end = startTime, endTime
	return f.summaries, f.summaryErr
}

func (f *fakeStats) GetRange(ctx context.Context, statType apistatsstore.StatType, startTime, endTime time.Time) ([]apistatsstore.Bucket, error) {
	if statType != apistatsstore.StatTypeGetTemplate {
		return nil, nil
	}
	return f.buckets, f.rangeErr
}

type nopSink struct{}

func (nopSink) Record(context.Context, apistatsstore.StatType, time.Duration, int64, bool) error {
	return nil
}

func setup(t *testing.T, stats StatsReader) (http.Handler, *apistatsystem.Recorder, *Handler) {
	t.Helper()
	sm, err := auth.NewSessionManager("this-is-a-32-character-long-key!", "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	rec := apistatsystem.NewRecorder(nopSink{}, zap.NewNop(), time.Hour)
	h := NewHandler(stats, rec, errorsfeature.NewErrorLogger(zap.NewNop()), zap.NewNop())
	return Routes(h, sm), rec, h
}

func TestServeStats(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	f := &fakeStats{
		summaries: []apistatsstore.Summary{{
			StatType:      apistatsstore.StatTypeGetTemplate,
			TotalRequests: 4,
			TotalErrors:   1,
			AvgMs:         7.5,
		}},
		buckets: []apistatsstore.Bucket{{
			Bucket:   now.Add(-time.Hour),
			Requests: 4,
			Errors:   1,
			TotalMs:  30,
		}},
	}
	router, _, h := setup(t, f)
	h.now = func() time.Time { return now }

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewOperatorRequest(http.MethodGet, "/?range=7d", nil, testutil.AdminOperator()))
	rec.AssertStatus(t, http.StatusOK)

	var got Response
	rec.DecodeJSON(t, &got)
	if got.Range != "7d" || got.Bucket != "1h0m0s" {
		t.Errorf("range=%q bucket=%q", got.Range, got.Bucket)
	}
	if !f.start.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Errorf("start = %v", f.start)
	}
	if len(got.Summaries) != 1 || got.Summaries[0].Label != "Get Template" || got.Summaries[0].ErrorRate != 25 {
		t.Errorf("summaries = %+v", got.Summaries)
	}
	points := got.Series[string(apistatsstore.StatTypeGetTemplate)]
	if len(points) != 1 || points[0].AvgMs != 7.5 {
		t.Errorf("series = %+v", got.Series)
	}
	if list, ok := got.Series[string(apistatsstore.StatTypeListTemplates)]; !ok || len(list) != 0 {
		t.Errorf("list series = %+v", list)
	}
}

func TestServeStats_Errors(t *testing.T) {
	router, _, _ := setup(t, &fakeStats{})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewOperatorRequest(http.MethodGet, "/?range=1y", nil, testutil.AdminOperator()))
	rec.AssertStatus(t, http.StatusBadRequest)

	router, _, _ = setup(t, &fakeStats{summaryErr: errors.New("db down")})
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewOperatorRequest(http.MethodGet, "/", nil, testutil.AdminOperator()))
	rec.AssertStatus(t, http.StatusInternalServerError)

	// A failing series still returns the summary.
	router, _, _ = setup(t, &fakeStats{rangeErr: errors.New("slow")})
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewOperatorRequest(http.MethodGet, "/", nil, testutil.AdminOperator()))
	rec.AssertStatus(t, http.StatusOK)
}

func TestHandleSetBucket(t *testing.T) {
	router, recorder, _ := setup(t, &fakeStats{})

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewOperatorRequest(http.MethodPut, "/bucket", map[string]string{"bucket": "15m"}, testutil.AdminOperator()))
	rec.AssertStatus(t, http.StatusOK)
	if recorder.BucketDuration() != 15*time.Minute {
		t.Errorf("BucketDuration() = %v", recorder.BucketDuration())
	}

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewOperatorRequest(http.MethodPut, "/bucket", map[string]string{"bucket": "7m"}, testutil.AdminOperator()))
	rec.AssertStatus(t, http.StatusBadRequest)
	if recorder.BucketDuration() != 15*time.Minute {
		t.Error("rejected bucket should not change the recorder")
	}
}

func TestRoutes_RequireAdmin(t *testing.T) {
	router, _, _ := setup(t, &fakeStats{})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodGet, "/", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
