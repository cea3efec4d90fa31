package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhcpy/dhcpy/internal/dhcp"
	"github.com/dhcpy/dhcpy/internal/metrics"
)

// pruneEvery is how many writes pass between Prune calls.
const pruneEvery = 100

// Recorder is a dhcp.Handler that journals every request it is given.
type Recorder struct {
	store      *Store
	limiter    *dhcp.RateLimiter
	maxRecords int
	logger     *slog.Logger
	now        func() time.Time
}

// NewRecorder creates a recorder. A nil limiter records everything;
// maxRecords <= 0 disables pruning.
func NewRecorder(store *Store, limiter *dhcp.RateLimiter, maxRecords int, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:      store,
		limiter:    limiter,
		maxRecords: maxRecords,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleRequest implements dhcp.Handler.
func (r *Recorder) HandleRequest(ctx context.Context, req *dhcp.Request) error {
	if r.limiter != nil && !r.limiter.Allow(req.Message.CHAddr) {
		metrics.PacketsDropped.WithLabelValues("capture_rate_limited").Inc()
		r.logger.Debug("capture rate limited", "chaddr", req.Message.CHAddr)
		return nil
	}

	id, err := r.store.Put(NewRecord(req, r.now()))
	if err != nil {
		metrics.CaptureErrors.Inc()
		return fmt.Errorf("recording capture: %w", err)
	}
	metrics.CaptureRecords.Inc()

	if r.maxRecords > 0 && id%pruneEvery == 0 {
		removed, err := r.store.Prune(r.maxRecords)
		if err != nil {
			r.logger.Warn("pruning capture journal", "error", err)
		} else if removed > 0 {
			r.logger.Debug("pruned capture journal", "removed", removed, "max_records", r.maxRecords)
		}
	}
	return nil
}
