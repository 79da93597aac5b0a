package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nolancloud/ncp/internal/domain"
	"github.com/nolancloud/ncp/internal/impls"
)

var storageBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "ncp_user_storage_bytes",
	Help: "Stored object bytes per user.",
}, []string{"user"})

// Reporter periodically aggregates per-user storage usage. It only
// reads, so the loop shares the reconciler's scheduling contract but has
// no repair duties.
type Reporter struct {
	users    impls.UserStore
	buckets  impls.BucketStore
	objects  impls.ObjectStore
	logger   *slog.Logger
	interval time.Duration
}

func New(users impls.UserStore, buckets impls.BucketStore, objects impls.ObjectStore, logger *slog.Logger, interval time.Duration) *Reporter {
	return &Reporter{users: users, buckets: buckets, objects: objects, logger: logger, interval: interval}
}

func (r *Reporter) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Reporter) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Report(ctx); err != nil {
				r.logger.Error("usage aggregation failed", "error", err)
			}
		}
	}
}

// Report sums object sizes per user and updates the usage gauge.
func (r *Reporter) Report(ctx context.Context) ([]domain.UsageReport, error) {
	users, err := r.users.List(ctx)
	if err != nil {
		return nil, err
	}
	buckets, err := r.buckets.List(ctx)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]domain.Bucket)
	for _, b := range buckets {
		byUser[b.UserID] = append(byUser[b.UserID], b)
	}

	out := make([]domain.UsageReport, 0, len(users))
	for _, user := range users {
		report := domain.UsageReport{UserID: user.ID, Email: user.Email}
		for _, b := range byUser[user.ID] {
			objs, err := r.objects.ListByBucket(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			for _, obj := range objs {
				report.Objects++
				report.Bytes += obj.Size
			}
		}

		storageBytes.WithLabelValues(user.Email).Set(float64(report.Bytes))
		if report.Bytes > 0 {
			r.logger.Info("storage usage",
				"email", user.Email,
				"objects", report.Objects,
				"bytes", report.Bytes,
			)
		}
		out = append(out, report)
	}
	return out, nil
}
