package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	plist "github.com/KimNorgaard/go-plist"
	"github.com/KimNorgaard/go-plist/node"
)

// Service sends and receives property-list documents over a Channel.
type Service struct {
	ch     Channel
	format plist.Format
	opts   []plist.Option
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithFormat returns an Option selecting the format of outgoing documents.
// Binary is the default. Incoming documents are accepted in either format.
func WithFormat(f plist.Format) Option {
	return func(s *Service) error {
		if f != plist.XMLFormat && f != plist.BinaryFormat {
			return fmt.Errorf("plist: unknown format %s", f)
		}
		s.format = f
		return nil
	}
}

// WithCodecOptions returns an Option passing opts to every encode and
// decode.
func WithCodecOptions(opts ...plist.Option) Option {
	return func(s *Service) error {
		s.opts = append(s.opts, opts...)
		return nil
	}
}

// WithLogger returns an Option that logs frame-level debug records to
// logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			return fmt.Errorf("plist: WithLogger(nil)")
		}
		s.logger = logger
		return nil
	}
}

// New returns a Service exchanging documents over ch.
func New(ch Channel, opts ...Option) (*Service, error) {
	if ch == nil {
		return nil, fmt.Errorf("plist: service.New(nil channel)")
	}
	s := &Service{
		ch:     ch,
		format: plist.BinaryFormat,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Send encodes n and writes it as one message.
func (s *Service) Send(ctx context.Context, n *node.Node) error {
	b, err := plist.Encode(n, s.format, s.opts...)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.ch.Send(ctx, b); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	s.logger.DebugContext(ctx, "sent plist", "format", s.format, "bytes", len(b), "root", n)
	return nil
}

// Receive reads one message and decodes it in whichever format it arrived.
func (s *Service) Receive(ctx context.Context) (*node.Node, error) {
	b, err := s.ch.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}
	n, err := plist.Decode(b, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	s.logger.DebugContext(ctx, "received plist", "format", plist.Detect(b), "bytes", len(b), "root", n)
	return n, nil
}

// ReceiveWithTimeout is Receive bounded by d.
func (s *Service) ReceiveWithTimeout(ctx context.Context, d time.Duration) (*node.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return s.Receive(ctx)
}

// Request sends n and returns the peer's reply.
func (s *Service) Request(ctx context.Context, n *node.Node) (*node.Node, error) {
	if err := s.Send(ctx, n); err != nil {
		return nil, err
	}
	return s.Receive(ctx)
}
