package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/config"
	metricsconfig "github.com/monsterutils/adrefresh/metrics/config"
)

const shutdownTimeout = 10 * time.Second

// Listen serves the admin API, and the Prometheus endpoint when one is configured, until the
// process receives SIGINT/SIGTERM or ctx ends. It returns once every server has shut down.
func Listen(ctx context.Context, cfg *config.Configuration, adminHandler http.Handler, metrics *metricsconfig.DetailedMetricsEngine) error {
	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(stopSignals)

	finished := make(chan struct{})
	defer close(finished)
	go forwardContextDone(ctx, stopSignals, finished)

	servers := []*namedServer{{name: "Admin", server: newAdminServer(cfg, adminHandler)}}
	if cfg.Metrics.Prometheus.Port != 0 {
		servers = append(servers, &namedServer{name: "Prometheus", server: newPrometheusServer(cfg, metrics)})
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, s := range servers {
		ln, err := newListener(s.server.Addr)
		if err != nil {
			for _, opened := range listeners {
				opened.Close()
			}
			return fmt.Errorf("%s server: %v", s.name, err)
		}
		listeners = append(listeners, ln)
	}

	// Fan any process-stopper signals out to each server for graceful shutdowns.
	done := make(chan struct{})
	stoppers := make([]chan<- os.Signal, 0, len(servers))
	for i, s := range servers {
		stopper := make(chan os.Signal)
		stoppers = append(stoppers, stopper)
		go shutdownAfterSignals(s.server, stopper, done)
		go runServer(s.server, s.name, listeners[i])
	}

	wait(stopSignals, done, stoppers...)
	return nil
}

type namedServer struct {
	name   string
	server *http.Server
}

func newAdminServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.AdminPort),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func runServer(server *http.Server, name string, listener net.Listener) {
	glog.Infof("%s server starting on: %s", name, server.Addr)
	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		glog.Infof("%s server stopped", name)
		return
	}
	glog.Errorf("%s server quit with error: %v", name, err)
}

func newListener(address string) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("Error listening for TCP connections on %s: %v", address, err)
	}

	if casted, ok := ln.(*net.TCPListener); ok {
		ln = &tcpKeepAliveListener{casted}
	} else {
		glog.Warning("net.Listen(\"tcp\", \"addr\") didn't return a TCPListener. Connections will not use keep-alives.")
	}

	return ln, nil
}

// contextDone is delivered to the servers when the caller's context ends before any OS signal.
type contextDone struct{}

func (contextDone) String() string { return "context done" }
func (contextDone) Signal()        {}

func forwardContextDone(ctx context.Context, to chan<- os.Signal, finished <-chan struct{}) {
	select {
	case <-ctx.Done():
		select {
		case to <- contextDone{}:
		case <-finished:
		}
	case <-finished:
	}
}

func wait(inbound <-chan os.Signal, done <-chan struct{}, outbound ...chan<- os.Signal) {
	sig := <-inbound

	for i := 0; i < len(outbound); i++ {
		go sendSignal(outbound[i], sig)
	}

	for i := 0; i < len(outbound); i++ {
		<-done
	}
}

func shutdownAfterSignals(server *http.Server, stopper <-chan os.Signal, done chan<- struct{}) {
	sig := <-stopper

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var s struct{}
	glog.Infof("Stopping %s because of signal: %s", server.Addr, sig.String())
	if err := server.Shutdown(ctx); err != nil {
		glog.Errorf("Failed to shutdown %s: %v", server.Addr, err)
	}
	done <- s
}

func sendSignal(to chan<- os.Signal, sig os.Signal) {
	to <- sig
}
