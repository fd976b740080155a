// Package apistats records per-request statistics for the delivery API.
package apistats

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/stratanotify/internal/app/store/apistats"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// recordTimeout bounds one background write to the sink.
const recordTimeout = 5 * time.Second

// Sink persists one request's statistics. *apistats.Store implements it.
type Sink interface {
	Record(ctx context.Context, statType apistats.StatType, bucketDuration time.Duration, durationMs int64, isError bool) error
}

// Recorder writes request statistics to a Sink in the background. One
// Recorder is shared by every delivery API route.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
	bucket atomic.Int64 // time.Duration
	wg     sync.WaitGroup
}

// NewRecorder creates a Recorder that groups requests into buckets of the
// given size.
func NewRecorder(sink Sink, logger *zap.Logger, bucket time.Duration) *Recorder {
	r := &Recorder{sink: sink, logger: logger}
	r.bucket.Store(int64(bucket))
	return r
}

// SetBucketDuration changes the bucket size for requests recorded from now on.
func (r *Recorder) SetBucketDuration(d time.Duration) {
	r.bucket.Store(int64(d))
}

// BucketDuration returns the current bucket size.
func (r *Recorder) BucketDuration() time.Duration {
	return time.Duration(r.bucket.Load())
}

// Record queues one request's statistics for writing.
func (r *Recorder) Record(statType apistats.StatType, durationMs int64, isError bool) {
	bucket := r.BucketDuration()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := r.sink.Record(ctx, statType, bucket, durationMs, isError); err != nil {
			r.logger.Error("failed to record API stats",
				zap.String("stat_type", string(statType)),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every queued Record has been written. Called at shutdown.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Middleware times each request and records it under statType. Responses
// with status 400 or above count as errors. A nil Recorder records nothing.
func (r *Recorder) Middleware(statType apistats.StatType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if r == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, req.ProtoMajor)

			next.ServeHTTP(ww, req)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			r.Record(statType, time.Since(start).Milliseconds(), status >= http.StatusBadRequest)
		})
	}
}
