package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/monsterutils/adrefresh/config"
	metricsconfig "github.com/monsterutils/adrefresh/metrics/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdminServer(t *testing.T) {
	cfg := &config.Configuration{
		Host:      "game.local",
		AdminPort: 6060,
	}
	server := newAdminServer(cfg, http.HandlerFunc(handler))
	assert.Equal(t, "game.local:6060", server.Addr)
	assert.Equal(t, 15*time.Second, server.ReadTimeout)
}

func TestNewPrometheusServer(t *testing.T) {
	cfg := &config.Configuration{Host: "game.local"}
	cfg.Metrics.Prometheus.Port = 9090
	cfg.Metrics.Prometheus.Namespace = "game"

	server := newPrometheusServer(cfg, metricsconfig.NewMetricsEngine(cfg, []string{"lobby"}))
	assert.Equal(t, "game.local:9090", server.Addr)
	assert.NotNil(t, server.Handler)
}

func TestServerShutdown(t *testing.T) {
	server := &http.Server{}
	ln := newMockListener()

	stopper := make(chan os.Signal)
	done := make(chan struct{})
	go shutdownAfterSignals(server, stopper, done)
	go server.Serve(ln)

	stopper <- os.Interrupt
	<-done

	// If the test didn't hang, then we know server.Shutdown really _did_ return, and shutdownAfterSignals
	// passed the message along as expected.
}

func TestWait(t *testing.T) {
	inbound := make(chan os.Signal)
	chan1 := make(chan os.Signal)
	chan2 := make(chan os.Signal)
	done := make(chan struct{})

	go forwardSignal(t, done, chan1)
	go forwardSignal(t, done, chan2)

	go func(chan os.Signal) {
		inbound <- os.Interrupt
	}(inbound)

	wait(inbound, done, chan1, chan2)
	// If this doesn't hang, then wait() is sending and receiving messages as expected.
}

func TestListenStopsWhenContextEnds(t *testing.T) {
	cfg := &config.Configuration{Host: "127.0.0.1", AdminPort: 0}
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		result <- Listen(ctx, cfg, http.HandlerFunc(handler), metricsconfig.NewMetricsEngine(cfg, nil))
	}()
	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after the context ended")
	}
}

func TestListenReportsBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := &config.Configuration{
		Host:      "127.0.0.1",
		AdminPort: busy.Addr().(*net.TCPAddr).Port,
	}
	err = Listen(context.Background(), cfg, http.HandlerFunc(handler), metricsconfig.NewMetricsEngine(cfg, nil))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Admin server")
}

func TestContextDoneSignal(t *testing.T) {
	var sig os.Signal = contextDone{}
	assert.Equal(t, "context done", sig.String())
}

func handler(w http.ResponseWriter, req *http.Request) {

}

// forwardSignal is basically a working mock for shutdownAfterSignals().
// It is used to test wait() effectively
func forwardSignal(t *testing.T, outbound chan<- struct{}, inbound <-chan os.Signal) {
	var s struct{}
	sig := <-inbound
	if sig != os.Interrupt {
		t.Errorf("Unexpected signal: %s\n", sig.String())
	}
	outbound <- s
}

type mockListener struct {
	closed chan struct{}
}

func newMockListener() *mockListener {
	return &mockListener{closed: make(chan struct{})}
}

func (ln *mockListener) Accept() (net.Conn, error) {
	<-ln.closed
	return nil, errors.New("listener closed")
}

func (ln *mockListener) Close() error {
	select {
	case <-ln.closed:
	default:
		close(ln.closed)
	}
	return nil
}

func (ln *mockListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}
