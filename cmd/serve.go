package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	"github.com/KaramelBytes/sow-workbench/internal/command"
	"github.com/KaramelBytes/sow-workbench/internal/ratecard"
	"github.com/KaramelBytes/sow-workbench/internal/server"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
	"github.com/KaramelBytes/sow-workbench/internal/store"
)

var (
	serveAddr     string
	serveProvider string
	serveNoWatch  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workbench HTTP API",
	Long: `Run the workbench HTTP API used by the web editor: generation, slash
commands, HTML/XLSX/PDF export, brand settings and the rate card. When
rate_card_file is configured it is imported at startup and re-imported
whenever it changes on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		runtime, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: serveProvider})
		if err != nil {
			return err
		}
		pipeline, err := newPipeline(runtime, cfg)
		if err != nil {
			return err
		}
		opts := server.Options{
			Addr:        serveAddr,
			Generator:   pipeline,
			Settings:    st.Settings,
			RateCard:    st,
			PDF:         pdfRenderer(cfg),
			Interpreter: command.New(),
			Logger:      logger,
		}
		if lister, ok := runtime.(ai.ModelLister); ok {
			opts.Models = lister
		}
		if cfg != nil {
			if opts.Addr == "" {
				opts.Addr = cfg.ServerAddr
			}
			opts.UploadsDir = cfg.UploadsDir
			opts.AllowedOrigins = cfg.AllowedOrigins
			opts.RateLimitRPS = cfg.RateLimitRPS
			opts.RateLimitBurst = cfg.RateLimitBurst
		}
		srv, err := server.New(opts)
		if err != nil {
			return err
		}
		logger.Info("runtime ready", zap.String("provider", provider))

		g, ctx := errgroup.WithContext(ctx)
		if path := rateCardFile(); path != "" {
			if err := importRateCard(ctx, st, path); err != nil {
				return err
			}
			if !serveNoWatch {
				g.Go(func() error { return watchRateCard(ctx, st, path) })
			}
		}
		g.Go(func() error { return srv.ListenAndServe(ctx) })
		return g.Wait()
	},
}

func rateCardFile() string {
	if cfg == nil {
		return ""
	}
	return cfg.RateCardFile
}

func importRateCard(ctx context.Context, st *store.Store, path string) error {
	items, err := ratecard.Load(path)
	if err != nil {
		return err
	}
	if err := st.ReplaceRateCard(ctx, items); err != nil {
		return err
	}
	logger.Info("rate card imported", zap.String("path", path), zap.Int("roles", len(items)))
	return nil
}

func watchRateCard(ctx context.Context, st *store.Store, path string) error {
	return ratecard.Watch(ctx, path, ratecard.DefaultDebounce,
		func(items []sow.RateCardItem) {
			if err := st.ReplaceRateCard(ctx, items); err != nil {
				logger.Error("rate card reload failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("rate card reloaded", zap.String("path", path), zap.Int("roles", len(items)))
		},
		func(err error) {
			logger.Warn("rate card file invalid; keeping previous card", zap.String("path", path), zap.Error(err))
		})
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :3002)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "runtime provider: openrouter, ollama or gemini")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not reload rate_card_file on change")
}
