package health_server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/xerrors"
)

const component = "HealthServer"

// HealthServer answers /healthz and exposes the job counters on /metrics.
type HealthServer struct {
	addr     string
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

func NewHealthServer(addr string, gatherer prometheus.Gatherer) *HealthServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("PONG"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &HealthServer{
		addr: addr,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 2 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (hs *HealthServer) Start() error {
	listener, err := net.Listen("tcp", hs.addr)
	if err != nil {
		return xerrors.Errorf("failed to start health server on %s: %w", hs.addr, err)
	}
	hs.listener = listener
	logger.LogInfo(component, "Listening on %s", listener.Addr())

	hs.wg.Add(1)
	go func() {
		defer hs.wg.Done()
		if err := hs.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError(component, "Serve failed: %v", err)
		}
	}()
	return nil
}

// Addr is the bound address, useful when started on port 0.
func (hs *HealthServer) Addr() string {
	if hs.listener == nil {
		return hs.addr
	}
	return hs.listener.Addr().String()
}

func (hs *HealthServer) Stop(ctx context.Context) error {
	err := hs.server.Shutdown(ctx)
	hs.wg.Wait()
	logger.LogInfo(component, "Stopped")
	return err
}
