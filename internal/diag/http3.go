// Package diag exposes a Heap's allocation statistics to remote
// monitoring tooling over HTTP/3. QUIC's connection migration and 0-RTT
// resumption make it a reasonable fit for a low-frequency polling
// endpoint scraped from a fleet of short-lived sidecars; it also lets the
// stats endpoint share a single UDP port with other QUIC-based tooling
// rather than claiming a TCP port of its own.
package diag

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"time"

	quic "github.com/quic-go/quic-go"
	http3 "github.com/quic-go/quic-go/http3"
)

// StatsSource is anything that can report a snapshot of allocator
// statistics. *heapd.Heap does not satisfy it directly (its Stats returns
// heapd.Stats); cmd/heapctl wraps it in a small adapter, so this package
// never imports heapd (which in turn avoids a dependency cycle, since
// heapd's own cmd wiring is what constructs a Server).
type StatsSource interface {
	Stats() interface{}
}

// Server serves a single JSON endpoint reporting the wrapped heap's
// current statistics, over HTTP/3.
type Server struct {
	pc    net.PacketConn
	srv   *http3.Server
	errC  chan error
	addr  string
	close func() error
}

// Options configures the underlying QUIC transport.
type Options struct {
	MaxIdleTimeout  time.Duration
	KeepAlivePeriod time.Duration
}

// NewServer builds a stats server bound to addr. A nil tlsCfg gets a
// minimal TLS 1.3 config, since QUIC requires TLS 1.3 or later.
func NewServer(addr string, tlsCfg *tls.Config, source StatsSource, opts Options) *Server {
	tlsCfg = ensureTLS13(tlsCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(source.Stats())
	})

	qc := &quic.Config{}
	if opts.MaxIdleTimeout > 0 {
		qc.MaxIdleTimeout = opts.MaxIdleTimeout
	}

	if opts.KeepAlivePeriod > 0 {
		qc.KeepAlivePeriod = opts.KeepAlivePeriod
	}

	return &Server{
		srv:  &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: mux, QUICConfig: qc},
		addr: addr,
		errC: make(chan error, 1),
	}
}

func ensureTLS13(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return &tls.Config{MinVersion: tls.VersionTLS13, NextProtos: []string{"h3"}}
	}

	if cfg.MinVersion != 0 && cfg.MinVersion >= tls.VersionTLS13 {
		return cfg
	}

	c := cfg.Clone()
	c.MinVersion = tls.VersionTLS13

	if len(c.NextProtos) == 0 {
		c.NextProtos = []string{"h3"}
	}

	return c
}

// Start begins serving on addr, which may end in ":0" to pick an
// ephemeral UDP port; Start returns the address actually bound.
func (s *Server) Start() (string, error) {
	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}

	s.pc = pc
	realAddr := pc.LocalAddr().String()
	done := make(chan struct{})

	go func() {
		if err := s.srv.Serve(s.pc); err != nil {
			select {
			case s.errC <- err:
			default:
			}
		}

		close(done)
	}()

	s.close = func() error {
		_ = s.pc.Close()

		select {
		case <-done:
		case <-time.After(time.Second):
		}

		return nil
	}

	return realAddr, nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.close != nil {
		return s.close()
	}

	return nil
}

// Errors returns the channel the first serve error, if any, is delivered
// on.
func (s *Server) Errors() <-chan error { return s.errC }
