package main

import (
	"github.com/spf13/cobra"

	"github.com/fefal-etl/internal/config"
	"github.com/fefal-etl/internal/pipeline"
	"github.com/fefal-etl/internal/sheet"
	"github.com/fefal-etl/internal/web"
)

func createServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review API",
		RunE: func(cmd *cobra.Command, args []string) error {
			webConfig := web.DefaultConfig()
			webConfig.Addr = cfg.Server.Addr
			if addr != "" {
				webConfig.Addr = addr
			}
			webConfig.Auth.APIKey = config.GetEnv("WEB_API_KEY", "")
			webConfig.Auth.Enabled = webConfig.Auth.APIKey != ""
			webConfig.Features.ExportEnabled = config.GetEnvBool("ENABLE_EXPORT", true)
			webConfig.Features.ManualOverrideEnabled = config.GetEnvBool("ENABLE_MANUAL_OVERRIDE", true)
			webConfig.Limits.MaxUploadBytes = int64(config.GetEnvInt("MAX_UPLOAD_MB", 32)) << 20
			webConfig.Limits.MaxSessions = config.GetEnvInt("MAX_RUNS", webConfig.Limits.MaxSessions)

			res, err := openResources(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer res.Close()

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			p.SetLogger(log)
			p.SetDebug(debugMode)

			server := web.NewServer(webConfig, web.Deps{
				Pipeline:    p,
				Loader:      &pipeline.Loader{Config: cfg, Registry: res.registry, Store: res.store},
				Store:       res.store,
				Audit:       res.audit,
				Types:       res.registry,
				ReadOptions: sheet.ReadOptions{TimeLayouts: cfg.TimeLayouts},
				Log:         log,
			})

			log.Info().
				Bool("export", webConfig.Features.ExportEnabled).
				Bool("manual_override", webConfig.Features.ManualOverrideEnabled).
				Bool("auth", webConfig.Auth.Enabled).
				Int("year", cfg.Year).
				Msg("review API configured")
			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
