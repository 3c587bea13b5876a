// Package network принимает TCP соединения клиентов всех семейств
// протоколов, проводит рукопожатие и обслуживает сессии.
package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/polycraft/internal/gate"
	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/metrics"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/world"
)

// ServerOptions параметры TCP сервера
type ServerOptions struct {
	Address          string
	Info             ServerInfo
	Session          SessionOptions
	HandshakeTimeout time.Duration
}

// TCPServer обрабатывает TCP соединения
type TCPServer struct {
	opts         ServerOptions
	registry     *protocol.Registry
	translations *translate.Context
	world        *world.Store
	loader       *world.Loader
	metrics      *metrics.Metrics
	handshaker   *Handshaker
	log          *logging.Logger

	listener net.Listener
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewTCPServer создаёт сервер; m может быть nil
func NewTCPServer(opts ServerOptions, r *protocol.Registry, tc *translate.Context,
	w *world.Store, l *world.Loader, m *metrics.Metrics) *TCPServer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	s := &TCPServer{
		registry:     r,
		translations: tc,
		world:        w,
		loader:       l,
		metrics:      m,
		log:          logging.GetNetworkLogger(),
		sessions:     make(map[uuid.UUID]*Session),
	}
	if opts.Info.Online == nil {
		opts.Info.Online = s.Online
	}
	s.opts = opts
	s.handshaker = NewHandshaker(r, opts.Info)
	return s
}

// Listen открывает порт
func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("не удалось открыть %s: %w", s.opts.Address, err)
	}
	s.listener = listener
	s.log.Info("🌐 TCP сервер слушает %s", listener.Addr())
	return nil
}

// Addr адрес открытого порта
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Online число активных сессий
func (s *TCPServer) Online() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Serve принимает соединения до отмены ctx, затем закрывает сессии и ждёт их
func (s *TCPServer) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.Warn("⚠️ Ошибка принятия соединения: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	s.log.Info("🛑 TCP сервер остановлен")
	return nil
}

// handleConnection рукопожатие и сессия одного соединения
func (s *TCPServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	conn.SetDeadline(time.Now().Add(s.opts.HandshakeTimeout))
	hello, err := s.handshaker.Accept(rw)
	conn.SetDeadline(time.Time{})

	var unsupported *ErrUnsupportedVersion
	switch {
	case errors.Is(err, ErrStatusOnly):
		s.log.Debug("Запрос статуса от %s", remote)
		return
	case errors.As(err, &unsupported):
		s.countHandshake(unsupported.Family.String(), "unsupported")
		s.log.Warn("🚫 %s: %v", remote, err)
		return
	case err != nil:
		s.countHandshake("unknown", "error")
		s.log.Warn("⚠️ Рукопожатие с %s не удалось: %v", remote, err)
		return
	}
	s.countHandshake(hello.Version.Family.String(), "ok")

	g := gate.New(s.registry, hello.Version, s.translations, s.metrics)
	session, err := NewSession(conn, rw, hello, g, s.registry, s.world, s.loader, s.metrics, s.opts.Session)
	if err != nil {
		s.log.Error("❌ Сессия для %s: %v", remote, err)
		return
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, session.ID)
		s.mu.Unlock()
	}()

	s.log.Info("✅ %s подключился с %s, клиент %s, сессия %s", hello.Username, remote, hello.Version, session.ID)
	if err := session.Run(ctx); err != nil {
		s.log.Warn("⚠️ Сессия %s завершилась с ошибкой: %v", session.ID, err)
	}
	s.log.Info("👋 %s отключился", hello.Username)
}

func (s *TCPServer) countHandshake(family, result string) {
	if s.metrics != nil {
		s.metrics.Handshakes.WithLabelValues(family, result).Inc()
	}
}
