package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/devisflow/internal/assistant"
	"github.com/diewo77/devisflow/internal/config"
	"github.com/diewo77/devisflow/internal/db"
	"github.com/diewo77/devisflow/internal/httpclient"
	"github.com/diewo77/devisflow/internal/logger"
	"github.com/diewo77/devisflow/internal/pdf"
	"github.com/diewo77/devisflow/internal/services"
	"github.com/diewo77/devisflow/internal/store"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// rootOptions holds the flags shared by every command. Set flags override
// the environment.
type rootOptions struct {
	Port   string
	DBPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "devisflow",
		Short:         "DevisFlow - invoice and proforma builder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Port, "port", "", "HTTP port (default $PORT or 8080)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "sqlite database file (default $DB_PATH or devisflow.db)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newTotalsCommand(opts))
	return cmd
}

func (o *rootOptions) config() *config.Config {
	cfg := config.Load()
	if o.Port != "" {
		cfg.Server.Port = o.Port
	}
	if o.DBPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = o.DBPath
	}
	return cfg
}

// runtime is what every command needs: configuration, a logger and the
// hydrated session.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *gorm.DB
	session *services.Session
}

func (o *rootOptions) open(ctx context.Context) (*runtime, error) {
	cfg := o.config()
	log, err := logger.NewLogger(cfg.App.Dev)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	conn, err := db.ConnectAndMigrate(cfg, log)
	if err != nil {
		return nil, err
	}
	opts := []services.Option{
		services.WithLogger(log),
		services.WithItemPolicy(services.ItemPolicy{
			AllowNegative: cfg.Items.AllowNegative,
			AllowZero:     cfg.Items.AllowZero,
		}),
	}
	if cfg.AI.Enabled() {
		hc := httpclient.NewDefaultClient(httpclient.ClientConfig{
			Timeout:  cfg.AI.Timeout,
			RetryMax: cfg.AI.RetryMax,
		}, log)
		opts = append(opts, services.WithAssistant(assistant.NewClient(cfg.AI, hc, log)))
	} else {
		log.Infow("AI_API_KEY not set, assistant disabled")
	}
	session := services.NewSession(store.NewGormStore(conn), opts...)
	if err := session.Hydrate(ctx); err != nil {
		// defaults are in place, keep going
		log.Warnw("some saved state could not be restored", "error", err)
	}
	return &runtime{cfg: cfg, log: log, db: conn, session: session}, nil
}

func (rt *runtime) close() {
	_ = rt.log.Sync()
	if sqlDB, err := rt.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and preview server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer rt.close()
			return serve(ctx, rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	app := NewApp(rt.db, rt.session, pdf.NewExporter(rt.cfg.PDF, rt.log), rt.log)
	srv := &http.Server{
		Addr:         ":" + rt.cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(rt.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(rt.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(rt.cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.Infow("server starting", "port", rt.cfg.Server.Port, "dev", rt.cfg.App.Dev, "db", rt.cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	rt.log.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	rt.log.Infow("server stopped gracefully")
	return nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config()
			log, err := logger.NewLogger(cfg.App.Dev)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			conn, err := db.Connect(cfg.Database, log)
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return err
			}
			log.Infow("migrations completed", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the current document as PDF",
		Long: `Render the saved draft as a PDF.

Without --out the file is named <invoiceNumber>_<client>.pdf in the
current directory. Use --out - to write to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			doc := rt.session.Snapshot().Document
			body, err := pdf.NewExporter(rt.cfg.PDF, rt.log).Render(doc)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if out == "" {
				out = pdf.Filename(doc)
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(body))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	return cmd
}

func newTotalsCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print the totals of the current document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", format)
			}
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			doc := rt.session.Snapshot().Document
			return printTotals(cmd.OutOrStdout(), services.NewInvoiceService().Summarize(&doc), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (json|text)")
	return cmd
}

func printTotals(w io.Writer, s services.Summary, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	_, err := fmt.Fprintf(w, "%s  %s  (%d items)\nSubtotal  %s\nTax       %s\nTotal     %s\n",
		s.Number, s.Client, s.Items, s.Subtotal, s.Tax, s.Total)
	return err
}
