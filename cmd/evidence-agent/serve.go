package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"evidence-agent/internal/app/routers"
	"evidence-agent/internal/app/services"
	"evidence-agent/internal/pkg/storage"
	"evidence-agent/pkg/config"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := storage.Init(ctx); err != nil {
				return err
			}
			defer storage.Close()
			if err := services.Init(); err != nil {
				return err
			}

			if strings.Contains(config.GetRunMode(), "dev") {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			addr := serveAddr
			if addr == "" {
				addr = config.GetServerConf().Address
			}
			srv := &http.Server{Addr: addr, Handler: routers.SetUp()}

			errCh := make(chan error, 1)
			go func() {
				log.Infof("evidence-agent listening on %s", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")

	return serve
}
