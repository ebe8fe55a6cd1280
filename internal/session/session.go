// Package session implements the UI message protocol: update-prices,
// export-png, ping and close requests answered with status, update-complete,
// export-ready, export-failed and pong replies.
package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/agentic-research/pricetag/api"
	"github.com/agentic-research/pricetag/internal/export"
	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/agentic-research/pricetag/internal/pricing"
)

// Progress texts posted before long-running work.
const (
	UpdatingText  = "Updating prices..."
	ExportingText = "Exporting PNG..."
)

// ErrClosed is returned by Handle for a close request.
var ErrClosed = errors.New("session closed")

// Poster delivers replies to the UI.
type Poster interface {
	Post(api.Outbound) error
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(api.Outbound) error

func (f PosterFunc) Post(m api.Outbound) error { return f(m) }

// Session answers UI requests against one scene.
type Session struct {
	scene    graph.Scene
	updater  *pricing.Updater
	exporter *export.Exporter
	logger   *slog.Logger
	onUpdate func(context.Context, pricing.Report) error
}

type Option func(*Session)

func WithUpdater(u *pricing.Updater) Option {
	return func(s *Session) { s.updater = u }
}

func WithExporter(e *export.Exporter) Option {
	return func(s *Session) { s.exporter = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithUpdateHook runs fn after every update-prices request, before the
// update-complete reply is posted. A hook error is logged only.
func WithUpdateHook(fn func(context.Context, pricing.Report) error) Option {
	return func(s *Session) { s.onUpdate = fn }
}

func New(scene graph.Scene, opts ...Option) *Session {
	s := &Session{
		scene:    scene,
		updater:  pricing.NewUpdater(),
		exporter: &export.Exporter{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handle processes one request to completion, posting its replies in order.
// It returns ErrClosed for close, a Poster error if a reply could not be
// delivered, and nil otherwise. Unknown types are ignored.
func (s *Session) Handle(ctx context.Context, msg api.Inbound, post Poster) error {
	switch msg.Type {
	case api.TypeUpdatePrices:
		return s.updatePrices(ctx, msg, post)
	case api.TypeExportPNG:
		return s.exportPNG(ctx, post)
	case api.TypePing:
		return post.Post(api.Pong())
	case api.TypeClose:
		s.logger.Debug("close requested")
		return ErrClosed
	default:
		s.logger.Debug("unknown message ignored", "type", msg.Type)
		return nil
	}
}

func (s *Session) updatePrices(ctx context.Context, msg api.Inbound, post Poster) error {
	mapping, err := pricing.DecodeJSON(msg.Data)
	if err != nil {
		s.logger.Warn("unreadable price mapping, treating as empty", "error", err)
		mapping = nil
	}
	if err := post.Post(api.Status(UpdatingText)); err != nil {
		return err
	}

	report := s.updater.Run(ctx, s.scene, mapping)
	if s.onUpdate != nil {
		if err := s.onUpdate(ctx, report); err != nil {
			s.logger.Warn("update hook failed", "error", err)
		}
	}
	return post.Post(api.UpdateComplete(report.Updates, report.NotFound))
}

func (s *Session) exportPNG(ctx context.Context, post Poster) error {
	target, err := export.Target(s.scene)
	if err != nil {
		s.logger.Info("nothing to export")
		return post.Post(api.ExportFailed(export.NothingToExportText))
	}
	if err := post.Post(api.Status(ExportingText)); err != nil {
		return err
	}
	res, err := s.exporter.Render(ctx, s.scene, target)
	if err != nil {
		s.logger.Warn("export failed", "node", target.ID, "error", err)
		return post.Post(api.ExportFailed(err.Error()))
	}
	return post.Post(api.ExportReady(res.Base64))
}
