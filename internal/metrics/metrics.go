// Package metrics метрики Prometheus для ядра сервера: решения фильтра
// пакетов, кодирование и загрузка чанков, тики мира, сессии и процесс.
package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/annel0/polycraft/internal/logging"
)

const namespace = "polycraft"

// Metrics набор метрик сервера
type Metrics struct {
	GateDecisions *prometheus.CounterVec
	ChunksEncoded *prometheus.CounterVec
	EncodeSeconds *prometheus.HistogramVec
	EncodedBytes  *prometheus.HistogramVec
	ChunkLoads    *prometheus.CounterVec
	LoadSeconds   prometheus.Histogram
	TickSeconds   prometheus.Histogram
	Committed     prometheus.Counter
	Sessions      prometheus.Gauge
	Handshakes    *prometheus.CounterVec
	ProcessCPU    prometheus.Gauge
	ProcessRSS    prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New создаёт метрики и регистрирует их в reg. Если reg реализует
// prometheus.Gatherer, Handler отдаёт именно его.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Решения фильтра исходящих событий.",
		}, []string{"version", "kind", "decision"}),
		ChunksEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_encoded_total",
			Help:      "Закодированные чанки по формату.",
		}, []string{"format"}),
		EncodeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_encode_seconds",
			Help:      "Длительность кодирования чанка.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"format"}),
		EncodedBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_encoded_bytes",
			Help:      "Размер закодированного чанка.",
			Buckets:   prometheus.ExponentialBuckets(256, 2, 10),
		}, []string{"format"}),
		ChunkLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_loads_total",
			Help:      "Загрузки чанков по источнику: store, generated, error.",
		}, []string{"source"}),
		LoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_load_seconds",
			Help:      "Загрузка или генерация чанка вместе с расчётом света.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		TickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "world_tick_seconds",
			Help:      "Длительность тика мира.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
		}),
		Committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "world_changes_committed_total",
			Help:      "Применённые изменения блоков.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Активные сессии.",
		}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Рукопожатия по семейству и результату.",
		}, []string{"family", "result"}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "Загрузка CPU процессом.",
		}),
		ProcessRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "Резидентная память процесса.",
		}),
	}

	reg.MustRegister(
		m.GateDecisions, m.ChunksEncoded, m.EncodeSeconds, m.EncodedBytes,
		m.ChunkLoads, m.LoadSeconds, m.TickSeconds, m.Committed,
		m.Sessions, m.Handshakes, m.ProcessCPU, m.ProcessRSS,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// NewIsolated метрики в собственном реестре (тесты и утилиты)
func NewIsolated() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler HTTP-обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve запускает HTTP-эндпоинт и блокируется до отмены ctx
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// SampleProcess периодически обновляет метрики процесса до отмены ctx
func (m *Metrics) SampleProcess(ctx context.Context, interval time.Duration) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logging.Warn("⚠️ Метрики процесса недоступны: %v", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sample(proc)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Metrics) sample(proc *process.Process) {
	if cpu, err := proc.CPUPercent(); err == nil {
		m.ProcessCPU.Set(cpu)
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		m.ProcessRSS.Set(float64(mem.RSS))
	}
}
