package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minishop-go/minishop/internal/config"
	"github.com/minishop-go/minishop/internal/stub"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		receiptDir string
		noSeed     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the in-memory stub backend",
		Long: `Run the stub backend: the full storefront HTTP contract served from
memory, including the SSE and WebSocket status streams. State is lost
on exit.

Examples:
  minishop serve
  minishop serve --addr=:8080 --receipt-dir=./receipts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Stub.Addr = addr
			}
			if receiptDir != "" {
				cfg.Stub.ReceiptDir = receiptDir
			}
			if noSeed {
				cfg.Stub.Seed = false
			}
			return runServe(cfg.Stub, newLogger(cfg))
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from minishop.json)")
	cmd.Flags().StringVar(&receiptDir, "receipt-dir", "", "Directory for uploaded receipts (default: in-memory)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Start with an empty catalog")

	return cmd
}

func runServe(cfg config.StubConfig, log *slog.Logger) error {
	opts := []stub.Option{stub.WithLogger(log)}
	if cfg.ReceiptDir != "" {
		receipts, err := stub.NewDiskReceipts(cfg.ReceiptDir)
		if err != nil {
			return err
		}
		opts = append(opts, stub.WithReceiptStore(receipts))
	}
	s := stub.New(opts...)
	if cfg.Seed {
		s.Seed()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("stub backend listening", "addr", cfg.Addr, "seeded", cfg.Seed)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
