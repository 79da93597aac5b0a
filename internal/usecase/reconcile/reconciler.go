package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
	"github.com/nolancloud/ncp/internal/impls"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ncp_reconcile_sweeps_total",
		Help: "Completed reconciliation sweeps.",
	})
	driftRepairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ncp_reconcile_drift_repairs_total",
		Help: "Instance status transitions applied from observed runtime state.",
	})
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ncp_reconcile_errors_total",
		Help: "Instances skipped in a sweep because the runtime query failed.",
	})
)

// Reconciler keeps persisted instance status eventually consistent with
// the runtime. It is the only writer allowed to transition status from
// observed (rather than commanded) state, and it never deletes records:
// a vanished container is marked terminated, preserving history.
type Reconciler struct {
	runtime   impls.ContainerRuntime
	instances impls.InstanceStore
	logger    *slog.Logger
	interval  time.Duration
}

func New(runtime impls.ContainerRuntime, instances impls.InstanceStore, logger *slog.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{runtime: runtime, instances: instances, logger: logger, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Reconciler) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepSafe(ctx)
		}
	}
}

// sweepSafe contains a panicking sweep so the loop keeps its schedule.
func (r *Reconciler) sweepSafe(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reconcile sweep panicked", "panic", p)
		}
	}()
	r.Sweep(ctx)
}

// Sweep runs one reconciliation pass. The active set is re-fetched every
// pass, failures are contained per instance, and nothing is surfaced to
// callers.
func (r *Reconciler) Sweep(ctx context.Context) {
	insts, err := r.instances.ListActive(ctx)
	if err != nil {
		r.logger.Error("reconcile: listing active instances failed", "error", err)
		return
	}

	for i := range insts {
		r.reconcileOne(ctx, &insts[i])
	}
	sweepsTotal.Inc()
}

func (r *Reconciler) reconcileOne(ctx context.Context, inst *domain.Instance) {
	observed, err := r.runtime.Inspect(ctx, inst.ContainerID)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			// The container was deleted or lost outside the control
			// plane. Mark terminated, keep the record.
			r.logger.Info("reconcile: container missing, marking terminated",
				"instance_id", inst.ID,
				"container_id", inst.ContainerID,
				"previous_status", inst.Status,
			)
			if err := r.instances.UpdateStatus(ctx, inst.ID, domain.StatusTerminated); err != nil {
				r.logger.Warn("reconcile: terminate update failed", "instance_id", inst.ID, "error", err)
				sweepErrorsTotal.Inc()
				return
			}
			driftRepairsTotal.Inc()
			return
		}
		// Unreachable runtime or any other failure: skip this instance
		// for this tick.
		r.logger.Warn("reconcile: inspect failed, skipping instance",
			"instance_id", inst.ID,
			"container_id", inst.ContainerID,
			"error", err,
		)
		sweepErrorsTotal.Inc()
		return
	}

	current := domain.InstanceStatus(observed.Status)
	if current == inst.Status {
		return
	}

	r.logger.Info("reconcile: updating drifted status",
		"instance_id", inst.ID,
		"from", inst.Status,
		"to", current,
	)
	if err := r.instances.UpdateStatus(ctx, inst.ID, current); err != nil {
		r.logger.Warn("reconcile: status update failed", "instance_id", inst.ID, "error", err)
		sweepErrorsTotal.Inc()
		return
	}
	driftRepairsTotal.Inc()
}
