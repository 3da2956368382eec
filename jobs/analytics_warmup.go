package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/paydash/internal/analytics"
	jobmetrics "github.com/odyssey-erp/paydash/internal/jobs"
	"github.com/odyssey-erp/paydash/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OverviewWarmer computes and caches the dashboard overview.
type OverviewWarmer interface {
	Overview(ctx context.Context, q analytics.OverviewQuery) (analytics.Overview, error)
}

// AnalyticsWarmupJob pre-populates the dashboard cache after the day changes.
type AnalyticsWarmupJob struct {
	Analytics OverviewWarmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(analyticsSvc OverviewWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: analyticsSvc,
		Logger:    logger,
		Metrics:   metrics,
		clock:     time.Now,
	}
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Reason == "" {
		payload.Reason = "schedule"
	}

	tracker := j.metrics().Track("analytics_warmup")
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	logger.Info("starting analytics warmup")

	start := j.now()
	for _, basis := range []ledger.Basis{ledger.BasisInvoice, ledger.BasisPayment} {
		if err := j.warmBasis(ctx, basis); err != nil {
			resultErr = err
			logger.Error("warm basis", slog.String("basis", string(basis)), slog.Any("error", err))
			return resultErr
		}
	}

	logger.Info("completed analytics warmup", slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

func (j *AnalyticsWarmupJob) warmBasis(ctx context.Context, basis ledger.Basis) error {
	basisCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	_, err := j.Analytics.Overview(basisCtx, analytics.OverviewQuery{Basis: basis})
	return err
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnalyticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
