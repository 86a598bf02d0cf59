// Command accessnode runs the key custody HTTP service: it holds the
// per-video key material and releases it only to owners and viewers
// with a valid access record.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/prividocs/privistream/internal/config"
	"github.com/prividocs/privistream/internal/custody"
	"github.com/prividocs/privistream/internal/keyvalstore"
	"github.com/prividocs/privistream/pkg/access"
	"github.com/prividocs/privistream/pkg/apiserver"
	"github.com/prividocs/privistream/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to the node config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}

	log := logging.New(cfg.LogLevel)

	storeLog := logrus.New()
	store, err := keyvalstore.New(keyvalstore.StoreConfig{
		Path:          cfg.DataDir,
		MinimumFreeGB: cfg.MinimumFreeGB,
		Logger:        storeLog,
	})
	if err != nil {
		logrus.WithError(err).Fatal("opening key-value store")
	}
	defer store.Close()

	ledger := access.NewLedger(store, nil)
	svc := custody.New(store, ledger, storeLog)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: apiserver.New(svc,
			apiserver.WithLogger(log),
			apiserver.WithMetrics(prometheus.DefaultRegisterer)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("access node listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", "error", err)
	}
}
