package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pvv/api/app"
	"pvv/api/services"
	"pvv/api/services/sanitation"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// Command creates the cobra.Command serving the JSON web API
func Command(ctx *app.Context) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the JSON web API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				ctx.Config.Api.Port = port
			}
			return serve(cmd.Context(), ctx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides the configured port)")

	return cmd
}

func serve(runCtx context.Context, ctx *app.Context) error {
	cfg := ctx.Config
	log := ctx.Log

	rt, err := ctx.Build(runCtx)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Service Singletons
	iz := services.NewIngestionService(runCtx, rt.Pipeline, cfg, log.With("component", "ingestion"))
	ss := sanitation.NewSanitationService(rt.Pipeline, cfg, log.With("component", "refresh"))
	if err := ss.Init(runCtx); err != nil {
		return err
	}
	defer ss.Stop()

	e := NewServer(Dependencies{
		Config:            cfg,
		Store:             rt.Store,
		Search:            rt.Search,
		IngestionService:  iz,
		SanitationService: ss,
		Registry:          ctx.Registry,
		Log:               log,
	})

	log.Info("serving",
		"port", cfg.Api.Port,
		"vcfPath", cfg.Api.VcfPath,
		"database", cfg.Database.Path,
		"search", rt.Search != nil,
		"assemblyId", cfg.Annotation.AssemblyId)

	errs := make(chan error, 1)
	go func() {
		errs <- e.Start(":" + cfg.Api.Port)
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-runCtx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", "error", err)
		}
	}

	// loads observe the cancelled context and finalize their batches
	iz.Wait()
	return nil
}
