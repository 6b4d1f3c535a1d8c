// Package transport implements the dispatcher/worker wire protocol: a
// length-prefixed framed connection per outbound send, and a long-lived
// accept loop per inbound listener. It is the Go-TCP analogue of the
// tokio-based transport the original coordinator used.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/protocol"
)

// Handler processes one inbound message from a long-lived connection.
// Dispatcher and worker each supply their own Handler with a different
// dispatch table, keeping the transport itself free of domain logic.
type Handler interface {
	HandleMessage(ctx context.Context, m protocol.Message) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, m protocol.Message) error

func (f HandlerFunc) HandleMessage(ctx context.Context, m protocol.Message) error {
	return f(ctx, m)
}

// Send opens a fresh connection to addr, writes exactly one frame, and
// closes it. This is the transport's only outbound primitive: dispatcher and
// worker both use it to fire assignments, results, heartbeats and cancels.
func Send(ctx context.Context, addr string, m protocol.Message) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	if err := protocol.WriteFrame(conn, m); err != nil {
		return fmt.Errorf("transport: send to %s: %w", addr, err)
	}
	return nil
}

// Listener accepts inbound connections and drives each one with a Handler
// until the stream ends or the listener is closed.
type Listener struct {
	ln   net.Listener
	name string
}

// Listen binds addr and returns a Listener ready to Serve. name identifies
// the listener in log lines ("dispatcher" or "worker").
func Listen(addr, name string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on %s: %w", addr, err)
	}
	return &Listener{ln: ln, name: name}, nil
}

// Addr returns the bound address, useful when addr was "host:0" and the OS
// picked the port.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections; Serve observes the resulting accept
// error and returns. Connections already accepted keep being handled until
// their stream ends or the ctx passed to Serve is cancelled.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Serve accepts connections until ctx is cancelled or Close is called,
// handing each one to handler on its own goroutine.
func (l *Listener) Serve(ctx context.Context, handler Handler) error {
	log := logger.WithComponent("transport." + l.name)

	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("accept failed")
			return err
		}
		go handleConn(ctx, conn, handler, log)
	}
}

func handleConn(ctx context.Context, conn net.Conn, handler Handler, log zerolog.Logger) {
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m, err := protocol.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error().Err(err).Msg("frame read failed, closing connection")
			return
		}

		if err := handler.HandleMessage(ctx, m); err != nil {
			log.Warn().Err(err).Str("kind", m.Kind.String()).Msg("message handler returned error")
		}
	}
}
