package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/polycraft/internal/config"
	"github.com/annel0/polycraft/internal/logging"
	"github.com/annel0/polycraft/internal/metrics"
	"github.com/annel0/polycraft/internal/network"
	"github.com/annel0/polycraft/internal/protocol"
	"github.com/annel0/polycraft/internal/storage"
	"github.com/annel0/polycraft/internal/translate"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world"
	"github.com/annel0/polycraft/internal/world/gen"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Logging.ToFile {
		if err := logging.InitDefaultLogger("server"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
	}
	defer logging.CloseDefaultLogger()
	logging.SetConsoleLevel(logging.ParseLevel(cfg.Logging.Level))

	logging.Info("🎮 Запуск polycraft, мир %s, хранилище %s", cfg.World.Path, cfg.World.Storage)
	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(cfg *config.Config) error {
	registry := protocol.MustDefaultRegistry()
	m := metrics.New(prometheus.DefaultRegisterer)

	translations := translate.NewContext(translate.Options{
		ResourceDir:        cfg.Translation.ResourceDir,
		ForeignPalettePath: cfg.Translation.ForeignPalette,
	})

	if err := os.MkdirAll(cfg.World.Path, 0755); err != nil {
		return fmt.Errorf("каталог мира: %w", err)
	}
	level, err := openLevel(cfg)
	if err != nil {
		return err
	}
	stamp, err := storage.AcquireSession(cfg.World.Path)
	if err != nil {
		return err
	}

	store, err := storage.Open(storage.Backend(cfg.World.Storage), cfg.World.Path)
	if err != nil {
		return fmt.Errorf("хранилище мира: %w", err)
	}
	defer store.Close()

	generator := gen.New(level.RandomSeed)
	w := world.NewStore(store, world.Options{
		TickInterval: cfg.Server.TickInterval(),
		SaveEvery:    time.Duration(cfg.World.SaveEvery) * time.Second,
		Metrics:      m,
	})
	loader := world.NewLoader(w, storage.NewMultiSource(generator, store), m)

	spawn := vec.Vec3{X: int(level.SpawnX), Y: int(level.SpawnY), Z: int(level.SpawnZ)}
	server := network.NewTCPServer(network.ServerOptions{
		Address: fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.GetPort()),
		Info: network.ServerInfo{
			Name:       cfg.Server.Name,
			MOTD:       cfg.Server.MOTD,
			MaxPlayers: cfg.Server.MaxPlayers,
			Seed:       level.RandomSeed,
		},
		Session: network.SessionOptions{
			ViewRadius:  cfg.Server.ViewRadius,
			OutboundBuf: cfg.Server.OutboundBuf,
			Spawn:       spawn,
		},
	}, registry, translations, w, loader, m)
	if err := server.Listen(); err != nil {
		return err
	}

	for _, v := range registry.All() {
		logging.Info("   🧩 %s: %s", v, registry.CapabilitiesAvailable(v))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	loader.Start(gctx, cfg.World.LoaderWorkers)
	g.Go(func() error {
		w.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.Serve(gctx)
	})
	g.Go(func() error {
		return m.Serve(gctx, fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))
	})
	g.Go(func() error {
		m.SampleProcess(gctx, 5*time.Second)
		return nil
	})
	g.Go(func() error {
		return watchSession(gctx, cfg.World.Path, stamp)
	})

	logging.Info("✅ Сервер готов: %s, метрики :%d", server.Addr(), cfg.Server.GetMetricsPort())
	err = g.Wait()
	loader.Wait()

	level.Time = w.Time()
	if werr := storage.WriteLevel(cfg.World.Path, level); werr != nil {
		logging.Error("❌ Сохранение level.dat: %v", werr)
	}
	return err
}

// openLevel читает level.dat или создаёт новый мир с точкой появления
// на поверхности сгенерированного ландшафта
func openLevel(cfg *config.Config) (*storage.LevelInfo, error) {
	level, err := storage.ReadLevel(cfg.World.Path)
	if err == nil {
		logging.Info("🗺️ Загружен мир %q, сид %d", level.LevelName, level.RandomSeed)
		return level, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	generator := gen.New(cfg.World.Seed)
	level = &storage.LevelInfo{
		RandomSeed: cfg.World.Seed,
		SpawnX:     8,
		SpawnY:     int32(generator.SurfaceHeight(8, 8) + 1),
		SpawnZ:     8,
		LevelName:  cfg.Server.Name,
	}
	if storage.Backend(cfg.World.Storage) == storage.BackendRegion {
		level.Version = storage.RegionLevelVersion
	}
	if err := storage.WriteLevel(cfg.World.Path, level); err != nil {
		return nil, err
	}
	logging.Info("🌱 Создан новый мир, сид %d, точка появления %d,%d,%d",
		level.RandomSeed, level.SpawnX, level.SpawnY, level.SpawnZ)
	return level, nil
}

// watchSession останавливает сервер, если каталог мира захватил другой процесс
func watchSession(ctx context.Context, root string, stamp int64) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := storage.CheckSession(root, stamp); err != nil {
				return err
			}
		}
	}
}
