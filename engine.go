package hexazine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hexazine/hexazine/store"
)

// Engine is the account state engine. It owns the in-memory aggregate
// loaded by [Builder.Build] and serializes every mutating operation around
// its full read-modify-persist span; read-only operations share a read
// lock.
type Engine struct {
	config   Config
	store    *store.Store
	data     *store.Data
	notifier Notifier
	audit    *auditDispatcher
	metrics  *Metrics
	logger   *zap.Logger

	mu sync.RWMutex
}

// Close drains the audit dispatcher. The engine must not be used after
// Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.data == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return nil
}

// persist writes the whole aggregate. On failure the in-memory mutation
// stays applied; the error surfaces so a supervising layer can decide
// whether to keep running.
func (e *Engine) persist(ctx context.Context) error {
	if err := e.store.Persist(ctx); err != nil {
		e.metricInc(MetricPersistFailure)
		e.emitAudit(ctx, auditEventPersistFailure, false, "", err, nil)
		return err
	}
	return nil
}

// notify forwards one message to the configured notifier. A rejection
// aborts the caller before any mutation, wrapped as ErrNotifyFailed.
func (e *Engine) notify(ctx context.Context, email, template string, vars map[string]string) error {
	if e.notifier == nil {
		return nil
	}
	if err := e.notifier.Notify(ctx, email, template, vars); err != nil {
		e.logger.Warn("notification rejected",
			zap.String("template", template),
			zap.Error(err))
		return fmt.Errorf("%w: %s", ErrNotifyFailed, template)
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (e *Engine) changeCodeValid(code *store.ChangeCode) bool {
	return time.Since(code.CreatedAt()) < e.config.EmailChange.CodeTTL
}
