package headless

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
)

// Factory creates headless surfaces. Ids come from a sequence that may be
// shared with other surface kinds of the same host.
type Factory struct {
	seq      *surface.Sequence
	sessions *Sessions
	cfg      Config
	logger   *zap.Logger
}

// NewFactory creates a surface factory
func NewFactory(seq *surface.Sequence, cfg Config, logger *zap.Logger) *Factory {
	if seq == nil {
		seq = surface.NewSequence()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	logger = logger.Named("headless")
	return &Factory{
		seq:      seq,
		sessions: NewSessions(cfg, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Create implements surface.Factory.
func (f *Factory) Create(ctx context.Context, opts surface.CreateOptions) (surface.Surface, error) {
	return f.New(ctx, opts)
}

// New creates a headless surface and returns its concrete type.
func (f *Factory) New(ctx context.Context, opts surface.CreateOptions) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := f.sessions.Acquire(opts.Partition)
	if err != nil {
		return nil, fmt.Errorf("partition %q: %w", opts.Partition, err)
	}

	s := newSurface(f.seq.Next(), opts.Preferences, opts.Partition, sess, f.sessions, f.cfg, f.logger)
	if opts.Embedder != nil {
		s.SetEmbedder(opts.Embedder)
	}
	f.logger.Debug("Surface created",
		zap.Int64("surface_id", int64(s.ID())),
		zap.String("partition", sess.Partition),
		zap.String("session_id", sess.ID),
	)
	return s, nil
}

// Sessions returns the partition sessions of the factory.
func (f *Factory) Sessions() *Sessions {
	return f.sessions
}
