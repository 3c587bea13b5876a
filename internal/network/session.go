package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/polycraft/internal/gate"
	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/metrics"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/protocol/events"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world"
)

// ErrTooSlow клиент не успевал читать события мира
var ErrTooSlow = errors.New("клиент не успевает за миром")

// SessionOptions параметры сессии
type SessionOptions struct {
	ViewRadius  int
	OutboundBuf int
	Spawn       vec.Vec3
}

// Session одно соединение клиента после рукопожатия. Исходящие события
// уходят в порядке применения изменений мира: единственная горутина записи
// читает подписку, пропускает события через фильтр версии и кодирует их.
type Session struct {
	ID    uuid.UUID
	Hello Hello

	conn    io.ReadWriteCloser
	r       *bufio.Reader
	w       *bufio.Writer
	gate    *gate.Gate
	enc     encoder
	inbound map[byte]protocol.Packet
	world   *world.Store
	loader  *world.Loader
	opts    SessionOptions
	metrics *metrics.Metrics
	log     *logging.Logger
}

// NewSession создаёт сессию для соединения, прошедшего рукопожатие.
// rw должен быть тем же буфером, через который шло рукопожатие.
func NewSession(conn io.ReadWriteCloser, rw *bufio.ReadWriter, hello Hello, g *gate.Gate, r *protocol.Registry,
	w *world.Store, l *world.Loader, m *metrics.Metrics, opts SessionOptions) (*Session, error) {
	enc, err := newEncoder(r, g, m)
	if err != nil {
		return nil, err
	}
	if opts.OutboundBuf <= 0 {
		opts.OutboundBuf = 512
	}
	if hello.Version.Family == protocol.FamilyFixedString {
		// Клиент Classic держит ровно один уровень
		opts.ViewRadius = 0
	}
	inbound := make(map[byte]protocol.Packet)
	for p, id := range r.Packets(hello.Version, protocol.Serverbound) {
		inbound[byte(id)] = p
	}
	return &Session{
		ID:      uuid.New(),
		Hello:   hello,
		conn:    conn,
		r:       rw.Reader,
		w:       rw.Writer,
		gate:    g,
		enc:     enc,
		inbound: inbound,
		world:   w,
		loader:  l,
		opts:    opts,
		metrics: m,
		log:     logging.GetNetworkLogger(),
	}, nil
}

// Run обслуживает сессию до отключения клиента или отмены ctx
func (s *Session) Run(ctx context.Context) error {
	sub := s.world.Subscribe(s.opts.OutboundBuf)
	defer s.world.Unsubscribe(sub)

	if s.metrics != nil {
		s.metrics.Sessions.Inc()
		defer s.metrics.Sessions.Dec()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.writeLoop(gctx, sub) })
	g.Go(func() error {
		<-gctx.Done()
		s.conn.Close()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// send пропускает событие через фильтр и пишет его клиенту
func (s *Session) send(ev events.Outbound) error {
	out, decision := s.gate.Filter(ev)
	if decision == gate.Drop {
		return nil
	}
	if err := s.enc.encode(s.w, out); err != nil {
		return fmt.Errorf("кодирование %s: %w", events.Describe(out), err)
	}
	return nil
}

// kick отправляет клиенту причину отключения
func (s *Session) kick(reason string) error {
	if err := s.send(events.Disconnect{Reason: reason}); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *Session) writeLoop(ctx context.Context, sub *world.Subscription) error {
	if err := s.sendSpawnArea(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warn("⚠️ Сессия %s (%s) не успевает, отключаем", s.ID, s.Hello.Username)
				if err := s.kick("Connection too slow"); err != nil {
					s.log.Warn("⚠️ Сессия %s: причина отключения не отправлена: %v", s.ID, err)
				}
				return ErrTooSlow
			}
			if err := s.send(ev); err != nil {
				return err
			}
			// Пакеты из буфера подписки уходят одной записью
			if len(sub.C) == 0 {
				if err := s.w.Flush(); err != nil {
					return err
				}
			}
		}
	}
}

// sendSpawnArea отправляет чанки вокруг точки появления от ближних к дальним.
// Перед каждым чанком проверяется, не отключился ли клиент.
func (s *Session) sendSpawnArea(ctx context.Context) error {
	start := time.Now()
	sent := 0
	for c := range s.loader.LoadArea(ctx, s.opts.Spawn.ChunkCoords(), s.opts.ViewRadius) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.send(events.ChunkData{Pos: c.Coords, Chunk: c.Snapshot()}); err != nil {
			return err
		}
		if err := s.w.Flush(); err != nil {
			return err
		}
		sent++
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := s.send(events.Teleport{EntityID: s.Hello.EntityID, Pos: vec.Vec3Float{
		X: float64(s.opts.Spawn.X) + 0.5, Y: float64(s.opts.Spawn.Y), Z: float64(s.opts.Spawn.Z) + 0.5,
	}}); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	s.log.Info("🗺️ Сессия %s: отправлено чанков %d за %v", s.ID, sent, time.Since(start))
	return nil
}

func (s *Session) readLoop(ctx context.Context) error {
	switch s.Hello.Version.Family {
	case protocol.FamilyFixedString:
		return s.readClassic(ctx)
	case protocol.FamilyUTF16:
		return s.readLegacy(ctx)
	case protocol.FamilyVarIntUTF8:
		return readJava(s.r)
	default:
		// Входящие пакеты Bedrock читает внешний транспорт
		<-ctx.Done()
		return ctx.Err()
	}
}
