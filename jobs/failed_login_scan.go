package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/primaria-digitala/registru/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// FailedLoginScanJob inspects the audit trail for bursts of failed
// login attempts against one email from one address. Detections are
// logged and counted; blocking is left to the operator.
type FailedLoginScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewFailedLoginScanJob initialises the scan handler.
func NewFailedLoginScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *FailedLoginScanJob {
	return &FailedLoginScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the failed-login scan.
func (j *FailedLoginScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("failed login scan: handler not configured")
	}
	var payload FailedLoginScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowMinutes <= 0 {
		payload.WindowMinutes = 15
	}
	if payload.Threshold <= 0 {
		payload.Threshold = 10
	}

	tracker := j.metrics().Track(TaskSecurityFailedLoginScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int("window_minutes", payload.WindowMinutes),
		slog.Int("threshold", payload.Threshold),
	)
	logger.Info("starting failed login scan")

	bursts, err := j.scan(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, b := range bursts {
		logger.Warn("failed login burst detected",
			slog.String("email", b.Email),
			slog.String("ip", b.IP),
			slog.Int64("attempts", b.Attempts),
		)
		j.metrics().AddLoginBursts(b.PrimariaID, 1)
	}

	logger.Info("completed failed login scan", slog.Int("bursts", len(bursts)))
	return resultErr
}

type loginBurst struct {
	Email      string
	IP         string
	PrimariaID int64
	Attempts   int64
}

func (j *FailedLoginScanJob) scan(ctx context.Context, payload FailedLoginScanPayload) ([]loginBurst, error) {
	if j.Pool == nil {
		return nil, errors.New("failed login scan: pool not configured")
	}
	since := j.now().Add(-time.Duration(payload.WindowMinutes) * time.Minute)
	rows, err := j.Pool.Query(ctx, `
		SELECT COALESCE(detail->>'email', ''), COALESCE(ip_address, ''),
		       COALESCE((detail->>'primaria_id')::bigint, 0), COUNT(*)
		FROM audit_log
		WHERE action = 'autentificare_esuata' AND created_at >= $1
		GROUP BY 1, 2, 3
		HAVING COUNT(*) >= $2
		ORDER BY COUNT(*) DESC`, since, payload.Threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bursts []loginBurst
	for rows.Next() {
		var b loginBurst
		if err := rows.Scan(&b.Email, &b.IP, &b.PrimariaID, &b.Attempts); err != nil {
			return nil, err
		}
		bursts = append(bursts, b)
	}
	return bursts, rows.Err()
}

func (j *FailedLoginScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSecurityFailedLoginScan))
	}
	return slog.Default().With(slog.String("job", TaskSecurityFailedLoginScan))
}

func (j *FailedLoginScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *FailedLoginScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
