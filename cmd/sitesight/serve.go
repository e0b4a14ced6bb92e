// cmd/sitesight/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitesight/internal/common/camunda"
	"sitesight/internal/common/config"
	ranksites "sitesight/internal/workers/sitehealth/rank-sites"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the rank-sites job worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	a.log.Info("starting sitesight", map[string]interface{}{
		"version":     version,
		"environment": a.cfg.App.Environment,
	})

	svc, err := a.buildService(ctx)
	if err != nil {
		return err
	}

	zeebe, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(a.cfg.Camunda))
	if err != nil {
		return err
	}
	a.onClose(zeebe.Close)
	a.checks["zeebe"] = zeebe
	a.log.Info("Zeebe client connected", map[string]interface{}{"gateway": a.cfg.Camunda.BrokerAddress})

	if !config.IsWorkerEnabled(a.cfg, ranksites.TaskType) {
		a.log.Warn("rank-sites worker disabled, serving health endpoints only", nil)
	}
	wcfg := config.GetWorkerConfig(a.cfg, ranksites.TaskType)
	handler := ranksites.NewHandler(ranksites.LoadConfig(wcfg, a.cfg.Source.SitesPath), svc, a.log)
	w := camunda.StartWorker(zeebe.GetClient(), ranksites.TaskType, wcfg, handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.Observability.ListenAddress,
		Handler:           newOpsRouter(a.checks, promhttp.Handler(), zap.NewStdLog(a.zapLog.Named("access")).Writer()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.Info("health/metrics server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("health/metrics server failed", map[string]interface{}{"error": err})
		}
	}()

	<-ctx.Done()
	a.log.Info("shutdown signal received, stopping worker", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if w != nil {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("health/metrics server shutdown failed", map[string]interface{}{"error": err})
	}

	a.log.Info("sitesight stopped gracefully", nil)
	return nil
}
