package hexazine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hexazine/hexazine/store"
)

// Builder assembles an Engine. Zero values fall back to defaults: NoOp
// notifier, NoOp audit sink, zap.NewNop logger and defaultConfig().
type Builder struct {
	config   *Config
	notifier Notifier
	sink     AuditSink
	logger   *zap.Logger
	built    bool
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// WithConfig sets the engine configuration. The config is validated
// during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = &cfg
	return b
}

// WithNotifier sets the outbound notification delivery hook.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the sink receiving audit events.
func (b *Builder) WithAuditSink(s AuditSink) *Builder {
	b.sink = s
	return b
}

// WithLogger sets the structured logger.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration, opens and loads the data document
// (running pending schema migrations), and returns a ready Engine. A
// document written by a newer build aborts with store.ErrVersionSkew; a
// document failing cross-index validation aborts with store.ErrInvalid.
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, errors.New("hexazine: builder already consumed")
	}
	b.built = true

	cfg := defaultConfig()
	if b.config != nil {
		cfg = *b.config
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("hexazine: config: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	st := store.Open(cfg.Storage.DataPath, logger)
	data, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("hexazine: load: %w", err)
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = NoOpNotifier{}
	}

	sink := b.sink
	if sink == nil {
		sink = NoOpSink{}
	}

	e := &Engine{
		config:   cfg,
		store:    st,
		data:     data,
		notifier: notifier,
		metrics:  newMetrics(cfg.Metrics),
		logger:   logger,
	}
	e.audit = newAuditDispatcher(cfg.Audit, sink)

	logger.Info("engine ready",
		zap.String("data_path", cfg.Storage.DataPath),
		zap.Int("accounts", len(data.Accounts)))
	return e, nil
}
