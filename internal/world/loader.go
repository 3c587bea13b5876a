package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/metrics"
	"github.com/annel0/polycraft/internal/storage"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world/chunk"
)

// Source источник чанков для загрузчика (обычно storage.MultiSource)
type Source interface {
	Fetch(coords vec.Vec2) (*chunk.Chunk, storage.Origin, error)
}

type loadRequest struct {
	coords vec.Vec2
	reply  chan loadResult
}

type loadResult struct {
	chunk *chunk.Chunk
	err   error
}

// Loader пул воркеров загрузки и генерации. Одновременные запросы одного
// чанка объединяются; освещение считается до публикации чанка в мире.
type Loader struct {
	world    *Store
	source   Source
	requests chan loadRequest
	group    singleflight.Group
	metrics  *metrics.Metrics
	log      *logging.Logger

	// Общая загрузка живёт, пока жив загрузчик, а не первый из ждущих
	life context.Context

	wg sync.WaitGroup
}

// NewLoader создаёт загрузчик; m может быть nil
func NewLoader(w *Store, src Source, m *metrics.Metrics) *Loader {
	return &Loader{
		world:    w,
		source:   src,
		requests: make(chan loadRequest, 256),
		metrics:  m,
		log:      logging.GetWorldLogger(),
		life:     context.Background(),
	}
}

// Start запускает workers воркеров до отмены ctx
func (l *Loader) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	l.life = ctx
	for i := 0; i < workers; i++ {
		l.wg.Add(1)
		go l.worker(ctx)
	}
	l.log.Info("🔧 Загрузчик чанков: %d воркеров", workers)
}

// Wait ждёт завершения воркеров после отмены контекста
func (l *Loader) Wait() {
	l.wg.Wait()
}

func (l *Loader) worker(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-l.requests:
			c, err := l.load(req.coords)
			req.reply <- loadResult{chunk: c, err: err}
		}
	}
}

func (l *Loader) load(coords vec.Vec2) (*chunk.Chunk, error) {
	start := time.Now()
	c, origin, err := l.source.Fetch(coords)
	if err != nil {
		l.count("error")
		return nil, err
	}
	if origin == storage.OriginGenerated {
		c.GenerateLight(l.world.neighbours(coords))
	}
	c = l.world.publish(c)

	l.count(origin.String())
	if l.metrics != nil {
		l.metrics.LoadSeconds.Observe(time.Since(start).Seconds())
	}
	return c, nil
}

func (l *Loader) count(source string) {
	if l.metrics != nil {
		l.metrics.ChunkLoads.WithLabelValues(source).Inc()
	}
}

// Load возвращает загруженный чанк, при необходимости загружая его воркером.
// Отмена ctx прерывает только ожидание этого вызова.
func (l *Loader) Load(ctx context.Context, coords vec.Vec2) (*chunk.Chunk, error) {
	if c, ok := l.world.Chunk(coords); ok {
		return c, nil
	}

	life := l.life
	key := fmt.Sprintf("%d:%d", coords.X, coords.Z)
	ch := l.group.DoChan(key, func() (interface{}, error) {
		if c, ok := l.world.Chunk(coords); ok {
			return c, nil
		}
		req := loadRequest{coords: coords, reply: make(chan loadResult, 1)}
		select {
		case l.requests <- req:
		case <-life.Done():
			return nil, life.Err()
		}
		select {
		case res := <-req.reply:
			return res.chunk, res.err
		case <-life.Done():
			return nil, life.Err()
		}
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*chunk.Chunk), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LoadArea загружает квадрат чанков радиуса radius вокруг center. Результаты
// приходят в канал по мере готовности, канал закрывается в конце.
func (l *Loader) LoadArea(ctx context.Context, center vec.Vec2, radius int) <-chan *chunk.Chunk {
	out := make(chan *chunk.Chunk)
	go func() {
		defer close(out)
		var wg sync.WaitGroup
		for _, coords := range spiral(center, radius) {
			wg.Add(1)
			go func(coords vec.Vec2) {
				defer wg.Done()
				c, err := l.Load(ctx, coords)
				if err != nil {
					if ctx.Err() == nil {
						l.log.Warn("⚠️ Чанк %d,%d не загружен: %v", coords.X, coords.Z, err)
					}
					return
				}
				select {
				case out <- c:
				case <-ctx.Done():
				}
			}(coords)
		}
		wg.Wait()
	}()
	return out
}

// spiral координаты квадрата вокруг центра от ближних к дальним
func spiral(center vec.Vec2, radius int) []vec.Vec2 {
	out := make([]vec.Vec2, 0, (2*radius+1)*(2*radius+1))
	for r := 0; r <= radius; r++ {
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if max(abs(dx), abs(dz)) != r {
					continue
				}
				out = append(out, center.Add(vec.Vec2{X: dx, Z: dz}))
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
