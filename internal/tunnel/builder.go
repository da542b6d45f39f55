package tunnel

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Builder builds tunnels. It holds no per-tunnel state and is safe for
// concurrent use.
type Builder struct {
	opts Options
}

// NewBuilder returns a Builder using opts, with defaults filled in.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts.withDefaults()}
}

var defaultBuilder = NewBuilder(Options{})

// Build builds a tunnel with a default Builder. See (*Builder).Build.
func Build(ctx context.Context, cfg Config) (net.Conn, error) {
	return defaultBuilder.Build(ctx, cfg)
}

// BuildSOCKS builds a SOCKS tunnel with a default Builder.
func BuildSOCKS(ctx context.Context, cfg Config) (net.Conn, error) {
	return defaultBuilder.BuildSOCKS(ctx, cfg)
}

// BuildHTTP builds an HTTP CONNECT tunnel with a default Builder.
func BuildHTTP(ctx context.Context, cfg Config) (net.Conn, error) {
	return defaultBuilder.BuildHTTP(ctx, cfg)
}

// Build validates cfg and dispatches to BuildSOCKS or BuildHTTP according to
// cfg.Proxy.Type.
func (b *Builder) Build(ctx context.Context, cfg Config) (net.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case cfg.Proxy.Type.isSOCKS():
		return b.BuildSOCKS(ctx, cfg)
	case cfg.Proxy.Type == ProxyHTTP:
		return b.BuildHTTP(ctx, cfg)
	default:
		return nil, cfg.expectType(ProxySOCKS4, ProxySOCKS5, ProxyHTTP)
	}
}

func (b *Builder) attemptLogger(cfg *Config) logrus.FieldLogger {
	return b.opts.Logger.WithFields(logrus.Fields{
		"attempt": uuid.NewString(),
		"proxy":   cfg.Proxy.Address(),
		"type":    cfg.Proxy.Type,
		"target":  cfg.Target(),
	})
}

// fail converts err to the public *ConnectionError and logs it.
func fail(log logrus.FieldLogger, stage Stage, err error) error {
	cerr := asConnectionFailure(stage, err)
	log.WithFields(logrus.Fields{
		"stage":  stage,
		"reason": cerr.Reason,
	}).WithError(err).Warn("tunnel failed")
	return cerr
}

// negotiate runs handshake on conn under the negotiation deadline. If ctx is
// done first, pending I/O is interrupted and the context error is returned.
func (b *Builder) negotiate(ctx context.Context, conn net.Conn, handshake func() error) error {
	if b.opts.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(b.opts.NegotiationTimeout))
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})

	err := handshake()
	if !stop() {
		// The deadline may be reset at any moment; the conn is unusable.
		if err != nil {
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	if b.opts.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}
	return nil
}
