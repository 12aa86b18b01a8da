// Package transport provides the QUIC session layer between provider and
// getter. The provider listens with a certificate derived from its secret
// key; the getter dials any of the ticket's addresses. Stream payload
// integrity comes from content hashing one layer up, so the TLS identity is
// not verified against a CA.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the application protocol identifier for flit transfers.
const ALPN = "flit-bytes-v1"

// Session is an established connection to a peer.
type Session struct {
	conn   *quic.Conn
	logger *slog.Logger
}

// OpenStream opens a bidirectional stream to the peer.
func (s *Session) OpenStream(ctx context.Context) (*quic.Stream, error) {
	stream, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return stream, nil
}

// AcceptStream waits for the peer to open a stream.
func (s *Session) AcceptStream(ctx context.Context) (*quic.Stream, error) {
	stream, err := s.conn.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept stream: %w", err)
	}
	return stream, nil
}

// RemoteAddr returns the peer's network address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close closes the session.
func (s *Session) Close() error {
	return s.conn.CloseWithError(0, "")
}

// Listener accepts incoming sessions on the provider side.
type Listener struct {
	ln     *quic.Listener
	logger *slog.Logger
}

// Listen binds a UDP socket on addr and serves QUIC with a certificate
// derived from identity.
func Listen(addr string, identity *Identity, logger *slog.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	tuneUDP(udpConn)
	cert, err := identity.Certificate()
	if err != nil {
		udpConn.Close()
		return nil, err
	}
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
	}
	ln, err := quic.Listen(udpConn, tlsConf, serverConfig())
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("quic listen: %w", err)
	}
	logger.Info("listening", "addr", ln.Addr())
	return &Listener{ln: ln, logger: logger}, nil
}

// Accept waits for the next incoming session. It returns nil, nil when the
// listener has been closed and no more sessions will arrive.
func (l *Listener) Accept(ctx context.Context) (*Session, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("accept session: %w", err)
	}
	l.logger.Info("session accepted", "remote_addr", conn.RemoteAddr())
	return &Session{conn: conn, logger: l.logger}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting sessions.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Dial connects to one of addrs, trying each in order until a session is
// established.
func Dial(ctx context.Context, addrs []string, logger *slog.Logger) (*Session, error) {
	tlsConf := &tls.Config{
		// The provider's certificate is self-signed and derived from its
		// secret key; content verification happens by hash.
		InsecureSkipVerify: true,
		NextProtos:         []string{ALPN},
	}
	var lastErr error
	for _, addr := range addrs {
		conn, err := quic.DialAddr(ctx, addr, tlsConf, clientConfig())
		if err != nil {
			lastErr = err
			logger.Debug("dial failed", "addr", addr, "error", err)
			continue
		}
		logger.Info("connected", "addr", addr)
		return &Session{conn: conn, logger: logger}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no addresses to dial")
	}
	return nil, fmt.Errorf("dial: %w", lastErr)
}

func serverConfig() *quic.Config {
	cfg := clientConfig()
	cfg.MaxIncomingStreams = maxIncomingStreams
	return cfg
}

func clientConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod:                10 * time.Second,
		MaxIdleTimeout:                 30 * time.Second,
		InitialConnectionReceiveWindow: initialConnWindow,
		MaxConnectionReceiveWindow:     connReceiveWindow,
		InitialStreamReceiveWindow:     initialStreamWindow,
		MaxStreamReceiveWindow:         streamReceiveWindow,
	}
}
