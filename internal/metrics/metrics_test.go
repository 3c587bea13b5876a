package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsolated_DoesNotShareRegistry(t *testing.T) {
	a := NewIsolated()
	b := NewIsolated()
	a.Sessions.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Sessions))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Sessions))
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := NewIsolated()
	m.Handshakes.WithLabelValues("utf16", "ok").Inc()
	m.ChunksEncoded.WithLabelValues("nibble").Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `handshakes_total{family="utf16",result="ok"} 1`)
	assert.Contains(t, string(body), `chunks_encoded_total{format="nibble"} 3`)
}

func TestSampleProcess_StopsOnCancel(t *testing.T) {
	m := NewIsolated()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.SampleProcess(ctx, 1)
		close(done)
	}()
	cancel()
	<-done
}
