// Package world владеет каноническим миром: загруженными чанками, очередью
// изменений, которая применяется раз в тик, и рассылкой событий подписчикам.
package world

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/metrics"
	"github.com/annel0/polycraft/internal/protocol/events"
	"github.com/annel0/polycraft/internal/storage"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/block"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// TicksPerSecond частота мира по умолчанию
const TicksPerSecond = 20

// ErrStopped мир остановлен
var ErrStopped = errors.New("мир остановлен")

// Change изменение одного блока в глобальных координатах
type Change struct {
	Pos      vec.Vec3
	Block    block.BlockID
	Metadata byte
}

// pending элемент очереди: либо изменение блока, либо событие для рассылки
type pending struct {
	change *Change
	event  events.Outbound
}

// Subscription поток событий мира для одной сессии в порядке применения
type Subscription struct {
	C  <-chan events.Outbound
	id uint64
	ch chan events.Outbound
}

// Options параметры мира
type Options struct {
	TickInterval time.Duration
	SaveEvery    time.Duration
	QueueSize    int
	Metrics      *metrics.Metrics
}

// Store канонический мир. Изменения применяет только горутина Run.
type Store struct {
	opts  Options
	store storage.ChunkStore
	log   *logging.Logger

	queue chan pending

	mu     sync.RWMutex
	chunks map[vec.Vec2]*chunk.Chunk

	subMu  sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64

	tick    int64
	time    int64
	raining bool

	done chan struct{}
}

// NewStore создаёт мир поверх хранилища; store может быть nil
func NewStore(store storage.ChunkStore, opts Options) *Store {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / TicksPerSecond
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	return &Store{
		opts:   opts,
		store:  store,
		log:    logging.GetWorldLogger(),
		queue:  make(chan pending, opts.QueueSize),
		chunks: make(map[vec.Vec2]*chunk.Chunk),
		subs:   make(map[uint64]*Subscription),
		done:   make(chan struct{}),
	}
}

// Chunk возвращает загруженный чанк
func (s *Store) Chunk(coords vec.Vec2) (*chunk.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[coords]
	return c, ok
}

// Loaded число загруженных чанков
func (s *Store) Loaded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// publish делает чанк видимым. Повторная публикация сохраняет первый чанк.
func (s *Store) publish(c *chunk.Chunk) *chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.chunks[c.Coords]; ok {
		return existing
	}
	s.chunks[c.Coords] = c
	return c
}

// neighbours свет соседних загруженных чанков для расчёта на границе
func (s *Store) neighbours(coords vec.Vec2) chunk.NeighbourLight {
	return neighbourView{store: s, coords: coords}
}

type neighbourView struct {
	store  *Store
	coords vec.Vec2
}

func (n neighbourView) SkyLightAt(x, y, z int) (byte, bool) {
	cx, cz := n.coords.X, n.coords.Z
	switch {
	case x < 0:
		cx, x = cx-1, x+chunk.Width
	case x >= chunk.Width:
		cx, x = cx+1, x-chunk.Width
	}
	switch {
	case z < 0:
		cz, z = cz-1, z+chunk.Depth
	case z >= chunk.Depth:
		cz, z = cz+1, z-chunk.Depth
	}
	c, ok := n.store.Chunk(vec.Vec2{X: cx, Z: cz})
	if !ok {
		return 0, false
	}
	return c.SkyLight(x, y, z), true
}

// Submit ставит изменение блока в очередь. Блокируется, если очередь полна.
func (s *Store) Submit(ctx context.Context, ch Change) error {
	return s.enqueue(ctx, pending{change: &ch})
}

// Announce рассылает событие подписчикам в общем порядке с изменениями
func (s *Store) Announce(ctx context.Context, ev events.Outbound) error {
	return s.enqueue(ctx, pending{event: ev})
}

func (s *Store) enqueue(ctx context.Context, p pending) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}
	select {
	case s.queue <- p:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe регистрирует подписчика. Если подписчик не успевает читать и
// буфер переполнен, подписка закрывается: события не пропускаются молча и
// не переупорядочиваются.
func (s *Store) Subscribe(buf int) *Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	ch := make(chan events.Outbound, buf)
	sub := &Subscription{C: ch, id: s.nextID, ch: ch}
	s.subs[sub.id] = sub
	return sub
}

// Unsubscribe снимает подписку и закрывает её канал
func (s *Store) Unsubscribe(sub *Subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subs[sub.id]; ok {
		delete(s.subs, sub.id)
		close(sub.ch)
	}
}

func (s *Store) broadcast(ev events.Outbound) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			s.log.Warn("⚠️ Подписчик %d не успевает, подписка закрыта", id)
			delete(s.subs, id)
			close(sub.ch)
		}
	}
}

// Time текущее время суток в тиках
func (s *Store) Time() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.time
}

// Raining идёт ли дождь
func (s *Store) Raining() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raining
}

// SetWeather меняет погоду и рассылает событие в порядке очереди
func (s *Store) SetWeather(ctx context.Context, raining bool) error {
	return s.Announce(ctx, events.Weather{Raining: raining})
}

// Run крутит тики до отмены ctx, затем сохраняет изменённые чанки
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	var saveC <-chan time.Time
	if s.opts.SaveEvery > 0 && s.store != nil {
		saveTicker := time.NewTicker(s.opts.SaveEvery)
		defer saveTicker.Stop()
		saveC = saveTicker.C
	}

	s.log.Info("🌍 Мир запущен, тик %v", s.opts.TickInterval)
	for {
		select {
		case <-ctx.Done():
			close(s.done)
			s.Save()
			s.subMu.Lock()
			for id, sub := range s.subs {
				delete(s.subs, id)
				close(sub.ch)
			}
			s.subMu.Unlock()
			s.log.Info("🛑 Мир остановлен")
			return
		case <-ticker.C:
			s.Tick()
		case <-saveC:
			s.Save()
		}
	}
}

// Tick применяет всё, что накопилось в очереди к началу тика
func (s *Store) Tick() {
	start := time.Now()
	s.tick++

	n := len(s.queue)
	committed := 0
	for i := 0; i < n; i++ {
		p := <-s.queue
		if p.change != nil {
			if s.apply(*p.change) {
				committed++
			}
			continue
		}
		if w, ok := p.event.(events.Weather); ok {
			s.mu.Lock()
			s.raining = w.Raining
			s.mu.Unlock()
		}
		s.broadcast(p.event)
	}

	s.mu.Lock()
	s.time = (s.time + 1) % 24000
	now := s.time
	s.mu.Unlock()
	if s.tick%TicksPerSecond == 0 {
		s.broadcast(events.TimeUpdate{Time: now})
	}

	if m := s.opts.Metrics; m != nil {
		m.TickSeconds.Observe(time.Since(start).Seconds())
		m.Committed.Add(float64(committed))
	}
}

// apply применяет изменение; изменения в незагруженных чанках отбрасываются
func (s *Store) apply(ch Change) bool {
	if ch.Pos.Y < 0 || ch.Pos.Y >= chunk.Height {
		return false
	}
	coords := ch.Pos.ChunkCoords()
	c, ok := s.Chunk(coords)
	if !ok {
		s.log.Debug("Изменение %v в незагруженном чанке отброшено", ch.Pos)
		return false
	}

	local := ch.Pos.Local()
	c.SetBlockAndMetadata(local.X, local.Y, local.Z, ch.Block, ch.Metadata)
	c.Touch(s.tick)
	c.GenerateLight(s.neighbours(coords))

	s.broadcast(events.BlockChange{Pos: ch.Pos, Block: uint32(ch.Block), Metadata: ch.Metadata})
	return true
}

// Save записывает изменённые чанки
func (s *Store) Save() {
	if s.store == nil {
		return
	}
	s.mu.RLock()
	dirty := make([]*chunk.Chunk, 0)
	for _, c := range s.chunks {
		if c.Dirty() {
			dirty = append(dirty, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range dirty {
		if err := s.store.SaveChunk(c); err != nil {
			s.log.Error("❌ Сохранение чанка %d,%d: %v", c.Coords.X, c.Coords.Z, err)
		}
	}
	if len(dirty) > 0 {
		s.log.Info("💾 Сохранено чанков: %d", len(dirty))
	}
}
