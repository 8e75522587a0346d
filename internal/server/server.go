package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/titpd/internal/observability"
	"github.com/danmuck/titpd/internal/processor"
	"github.com/danmuck/titpd/internal/protocol/frame"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Transaction server listener and worker configuration.
type Config struct {
	Addr           string
	PoolSize       int
	SessionTimeout time.Duration
	WriteTimeout   time.Duration
	MaxFrame       int
	Backoff        Backoff
	// DrainTimeout bounds how long Drain waits for sessions after Serve
	// returns.
	DrainTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		PoolSize:       50,
		SessionTimeout: 30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxFrame:       frame.MaxPayloadLen,
		Backoff:        DefaultBackoff(),
		DrainTimeout:   30 * time.Second,
	}
}

// Server accepts client connections and hands each one to a worker slot.
// Connections beyond PoolSize wait for a free slot.
type Server struct {
	cfg     Config
	codec   Codec
	handler *Handler
	pool    *semaphore.Weighted

	counter atomic.Uint64
	active  atomic.Int64
	ready   atomic.Bool
	workers sync.WaitGroup
}

func New(cfg Config, codec Codec, registry *processor.Registry) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = def.MaxFrame
	}
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	return &Server{
		cfg:     cfg,
		codec:   codec,
		handler: NewHandler(codec, registry),
		pool:    semaphore.NewWeighted(int64(cfg.PoolSize)),
	}
}

func (s *Server) Handler() *Handler {
	return s.handler
}

// Ready reports whether the accept loop is running.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return ln, nil
}

// Run binds and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled. Cancelling closes the listener
// and stops accepting; every connection already accepted, including those
// still waiting for a worker slot, is served to completion.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	defer ln.Close()
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-done:
		}
	}()

	s.ready.Store(true)
	defer s.ready.Store(false)
	log.Info().
		Str("addr", ln.Addr().String()).
		Int("pool_size", s.cfg.PoolSize).
		Msg("server_listening")

	attempt := 0
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Msg("server_stopped")
				return nil
			}
			attempt++
			delay := s.cfg.Backoff.Delay(attempt)
			log.Warn().Err(err).Dur("retry_in", delay).Msg("accept_failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
		observability.RecordConnectionAccepted()

		s.workers.Add(1)
		go s.admit(nc)
	}
}

// Wait blocks until every admitted or queued connection has finished.
func (s *Server) Wait() {
	s.workers.Wait()
}

// Drain waits up to DrainTimeout for in-flight and queued sessions. It
// reports whether they all finished in time.
func (s *Server) Drain() bool {
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	timer := time.NewTimer(s.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		log.Info().Msg("sessions_drained")
		return true
	case <-timer.C:
		log.Warn().
			Int64("active_sessions", s.active.Load()).
			Dur("timeout", s.cfg.DrainTimeout).
			Msg("drain_timeout")
		return false
	}
}

// admit waits for a worker slot. The wait is not tied to the serve context,
// so shutdown never drops a connection that was already accepted.
func (s *Server) admit(nc net.Conn) {
	defer s.workers.Done()
	if err := s.pool.Acquire(context.Background(), 1); err != nil {
		_ = nc.Close()
		return
	}
	defer s.pool.Release(1)
	newConn(s, nc).serve()
}
