// Package ws runs sessions over a TLS websocket, for networks where UDP is blocked.
package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labi-le/clipsync/internal/transport"
)

const (
	Name = "ws"
	Path = "/clipsync"

	bufferSize = 32 << 10
)

type Transport struct {
	tlsConf   *tls.Config
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

func New(tlsConf *tls.Config, keepAlive time.Duration) *Transport {
	conf := tlsConf.Clone()
	conf.NextProtos = []string{"http/1.1"}

	return &Transport{
		tlsConf:   conf,
		keepAlive: keepAlive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Name() string { return Name }

func (t *Transport) Listen(ctx context.Context, addr string) (transport.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	l := &listener{
		ln:    ln,
		conns: make(chan *websocket.Conn),
		done:  make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		select {
		case l.conns <- conn:
		case <-l.done:
			_ = conn.Close()
		}
	})

	l.srv = &http.Server{
		Handler:           mux,
		TLSConfig:         t.tlsConf,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = l.srv.Serve(tls.NewListener(ln, t.tlsConf))
	}()

	return l, nil
}

func (t *Transport) Dial(ctx context.Context, addr string) (transport.Connection, error) {
	dialer := websocket.Dialer{
		TLSClientConfig:  t.tlsConf,
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   bufferSize,
		WriteBufferSize:  bufferSize,
		NetDialContext:   (&net.Dialer{KeepAlive: t.keepAlive}).DialContext,
	}

	u := url.URL{Scheme: "wss", Host: addr, Path: Path}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	return newConnection(conn), nil
}

type listener struct {
	ln    net.Listener
	srv   *http.Server
	conns chan *websocket.Conn

	once sync.Once
	done chan struct{}
}

func (l *listener) Accept(ctx context.Context) (transport.Connection, error) {
	select {
	case conn := <-l.conns:
		return newConnection(conn), nil
	case <-l.done:
		return nil, transport.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.srv.Close()
	})
	return err
}

func (l *listener) Addr() net.Addr { return l.ln.Addr() }

// connection carries exactly one stream: the websocket itself.
type connection struct {
	conn   *websocket.Conn
	stream *stream
}

func newConnection(conn *websocket.Conn) *connection {
	return &connection{conn: conn, stream: &stream{conn: conn}}
}

func (c *connection) OpenStream(context.Context) (transport.Stream, error) {
	return c.stream, nil
}

func (c *connection) AcceptStream(context.Context) (transport.Stream, error) {
	return c.stream, nil
}

func (c *connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *connection) Close() error { return c.stream.Close() }

type stream struct {
	conn *websocket.Conn
	r    io.Reader

	wmu    sync.Mutex
	closed bool
}

func (s *stream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			typ, r, err := s.conn.NextReader()
			if err != nil {
				return 0, mapError(err)
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, mapError(err)
	}
}

func (s *stream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, mapError(err)
	}
	return len(p), nil
}

func (s *stream) Close() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *stream) Reset() error { return s.conn.Close() }

func (s *stream) SetReadDeadline(t time.Time) error  { return s.conn.SetReadDeadline(t) }
func (s *stream) SetWriteDeadline(t time.Time) error { return s.conn.SetWriteDeadline(t) }

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("%w: %w", transport.ErrConnectionClosed, err)
	}
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", transport.ErrConnectionClosed, err)
	}
	return err
}
