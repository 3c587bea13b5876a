package network

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/polycraft/internal/storage"
	"github.com/annel0/polycraft/internal/vec"
	"github.com/annel0/polycraft/internal/world"
	"github.com/annel0/polycraft/internal/world/gen"
)

func startServer(t *testing.T) (*TCPServer, fixture, chan error) {
	t.Helper()
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	w := world.NewStore(nil, world.Options{})
	l := world.NewLoader(w, storage.NewMultiSource(gen.New(11)), nil)
	l.Start(ctx, 2)

	srv := NewTCPServer(ServerOptions{
		Address:          "127.0.0.1:0",
		Info:             ServerInfo{Name: "polycraft", MOTD: "test", MaxPlayers: 8},
		Session:          SessionOptions{Spawn: vec.Vec3{X: 8, Y: 90, Z: 8}},
		HandshakeTimeout: time.Second,
	}, f.registry, f.tc, w, l, f.metrics)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("сервер не остановился")
		}
	})
	return srv, f, done
}

func TestTCPServer_RejectsUnsupportedVersion(t *testing.T) {
	srv, f, _ := startServer(t)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(frame(t, pk.UnsignedByte(0x00), pk.UnsignedByte(5),
		fixedString("eve"), fixedString(""), pk.UnsignedByte(0)))
	require.NoError(t, err)

	var (
		id     pk.UnsignedByte
		reason fixedString
	)
	require.NoError(t, readFields(bufio.NewReader(conn), &id, &reason))
	assert.Equal(t, pk.UnsignedByte(0x0E), id)
	assert.Contains(t, string(reason), "Unsupported protocol 5")

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.Handshakes.WithLabelValues("fixed-string", "unsupported")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTCPServer_TracksOnlineSessions(t *testing.T) {
	srv, f, _ := startServer(t)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write(frame(t, pk.UnsignedByte(0x01), pk.Int(14), utf16String("bob"), pk.Long(0), pk.Byte(0)))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	var (
		id     pk.UnsignedByte
		eid    pk.Int
		unused utf16String
		seed   pk.Long
		dim    pk.Byte
	)
	require.NoError(t, readFields(r, &id, &eid, &unused, &seed, &dim))
	require.Equal(t, pk.UnsignedByte(0x01), id)

	require.Eventually(t, func() bool { return srv.Online() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Handshakes.WithLabelValues("utf16", "ok")))

	// Статус видит активную сессию
	ping, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer ping.Close()
	_, err = ping.Write([]byte{0xFE})
	require.NoError(t, err)
	var status utf16String
	require.NoError(t, readFields(bufio.NewReader(ping), &id, &status))
	assert.Equal(t, utf16String("test§1§8"), status)

	conn.Close()
	require.Eventually(t, func() bool { return srv.Online() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestTCPServer_ShutdownClosesSessions(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := world.NewStore(nil, world.Options{})
	l := world.NewLoader(w, storage.NewMultiSource(gen.New(11)), nil)
	l.Start(ctx, 1)
	srv := NewTCPServer(ServerOptions{Address: "127.0.0.1:0"}, f.registry, f.tc, w, l, f.metrics)
	require.NoError(t, srv.Listen())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(frame(t, pk.UnsignedByte(0x01), pk.Int(14), utf16String("bob"), pk.Long(0), pk.Byte(0)))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Online() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve не вернулся после отмены")
	}
	assert.Zero(t, srv.Online())
}
