package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/lucidpdf/textlayer/internal/config"
	"github.com/lucidpdf/textlayer/internal/service"
	"github.com/lucidpdf/textlayer/observability"
	"github.com/lucidpdf/textlayer/ocr"
	"github.com/lucidpdf/textlayer/overlay"
)

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the embedding service",
	Long: `Starts the HTTP service. All settings come from the environment:
PORT, NANONETS_API_KEY, OCR_API_URL, AUTH_TOKEN, MAX_FILE_SIZE,
MAX_PAGES, PAGE_WORKERS, MAX_CONCURRENT_REQUESTS, PROFILE_PATH,
LOG_LEVEL and friends.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := observability.NewLogger(cfg.LogLevel, false)
	if err != nil {
		return err
	}

	engineCfg := overlay.Config{Workers: cfg.PageWorkers, Logger: log}
	if cfg.ProfilePath != "" {
		p, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return err
		}
		engineCfg, err = p.Apply(engineCfg)
		if err != nil {
			return err
		}
	}

	opts := []ocr.ClientOption{ocr.WithLogger(log)}
	if cfg.ProviderURL != "" {
		opts = append(opts, ocr.WithBaseURL(cfg.ProviderURL))
	}
	provider := ocr.NewClient(cfg.ProviderKey, opts...)

	srv := service.New(cfg, overlay.NewEngine(engineCfg), provider, log)

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return err
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	log.Info("listening",
		observability.String("addr", cfg.Addr()),
		observability.String("version", version),
		observability.Int("max_pages", cfg.MaxPages),
		observability.Int64("max_file_size", cfg.MaxFileSize),
	)
	if strings.TrimSpace(cfg.ProviderKey) == "" {
		log.Warn("NANONETS_API_KEY is not set, document requests will fail")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
