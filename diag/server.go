package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"ykb/core"
	"ykb/kbhandler"
	"ykb/kscan"
	"ykb/protocol"
)

// Board is what the server inspects. keyboard.Keyboard implements it.
type Board interface {
	Scanners() []kscan.Backend
}

// Server answers diagnostic requests on the device side.
type Server struct {
	conn  *protocol.Conn
	board Board
	log   *slog.Logger
	trace atomic.Bool
}

// NewServer serves board over rw.
func NewServer(rw io.ReadWriter, board Board, log *slog.Logger) *Server {
	if log == nil {
		log = core.Logger()
	}
	return &Server{
		conn:  protocol.NewConn(rw, NewDictionary()),
		board: board,
		log:   log.With("component", "diag"),
	}
}

// Tracing reports whether key events are forwarded to the host.
func (s *Server) Tracing() bool { return s.trace.Load() }

// KeySink forwards key events while tracing is enabled. It is meant to be
// registered with a kbhandler.Handler so the scan goroutines never wait
// on the link.
func (s *Server) KeySink() kbhandler.Sink {
	return func(ev kbhandler.Event) {
		if !s.trace.Load() {
			return
		}
		err := s.conn.Send(MsgKey, protocol.Params{
			"idx":     ev.Index,
			"pressed": ev.Kind == kbhandler.Press,
		})
		if err != nil {
			s.log.Warn("key event not sent", "idx", ev.Index, "err", err)
		}
	}
}

// Serve handles requests until the link fails or ctx is done. Cancellation
// is noticed between requests.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("diagnostic link up")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := s.conn.Recv()
		if err != nil {
			s.log.Error("diagnostic link down", "err", err)
			return err
		}
		if err := s.handle(r); err != nil {
			s.log.Warn("reply not sent", "msg", r.Msg.Name, "err", err)
		}
	}
}

func (s *Server) scanner(p protocol.Params) (kscan.Backend, error) {
	idx := int(p.Uint("idx"))
	scanners := s.board.Scanners()
	if idx >= len(scanners) {
		return nil, fmt.Errorf("scanner %d: %w", idx, ErrUnknownScanner)
	}
	return scanners[idx], nil
}

func (s *Server) status(err error) error {
	return s.conn.Send(MsgStatus, protocol.Params{"code": statusCode(err)})
}

func (s *Server) handle(r protocol.Received) error {
	s.log.Debug("request", "msg", r.Msg.Name)

	switch r.Msg.Name {
	case MsgIdentify:
		scanners := s.board.Scanners()
		if err := s.conn.Send(MsgInfo, protocol.Params{
			"count":   len(scanners),
			"version": []byte(protocol.Version),
		}); err != nil {
			return err
		}
		for i, b := range scanners {
			if err := s.conn.Send(MsgScanner, protocol.Params{
				"idx":    i,
				"kind":   uint8(b.Kind()),
				"offset": b.IdxOffset(),
				"keys":   b.KeyAmount(),
				"name":   []byte(b.Name()),
			}); err != nil {
				return err
			}
		}
		return nil

	case MsgGetThresholds:
		b, err := s.scanner(r.Params)
		if err != nil {
			return s.status(err)
		}
		if int(b.KeyAmount()) > MaxThresholds {
			return s.status(core.ErrInvalidArgument)
		}
		values := make([]uint16, b.KeyAmount())
		if err := b.GetThresholds(values); err != nil {
			return s.status(err)
		}
		return s.conn.Send(MsgThresholds, protocol.Params{
			"idx":    r.Params.Uint("idx"),
			"values": packThresholds(values),
		})

	case MsgSetThresholds:
		b, err := s.scanner(r.Params)
		if err != nil {
			return s.status(err)
		}
		values, err := unpackThresholds(r.Params.Bytes("values"))
		if err != nil {
			return s.status(err)
		}
		err = b.SetThresholds(values)
		if err != nil {
			s.log.Warn("thresholds rejected", "scanner", b.Name(), "err", err)
		} else {
			s.log.Info("thresholds updated", "scanner", b.Name())
		}
		return s.status(err)

	case MsgDefaultThreshold:
		b, err := s.scanner(r.Params)
		if err != nil {
			return s.status(err)
		}
		b.SetDefaultThresholds()
		s.log.Info("thresholds reset", "scanner", b.Name())
		return s.status(nil)

	case MsgTrace:
		on := r.Params.Uint("enable") != 0
		s.trace.Store(on)
		s.log.Info("key trace", "enabled", on)
		return s.status(nil)
	}

	s.log.Debug("ignoring message", "msg", r.Msg.Name)
	return nil
}
