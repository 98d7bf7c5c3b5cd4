package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/api"
	"github.com/schoolpaypro/ledger/internal/broadcast"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.API.Addr
			}
			return serve(ctx, a, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: api.addr)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string) error {
	ledgerEvents, unsubLedger := a.hub.Subscribe(64)
	defer unsubLedger()
	satEvents, unsubSat := a.hub.Subscribe(64)
	defer unsubSat()
	go a.ledger.Follow(ctx, ledgerEvents)
	go a.sat.Follow(ctx, satEvents)

	if brokers := a.cfg.Broadcast.KafkaBrokers; len(brokers) > 0 {
		group := a.cfg.Broadcast.KafkaGroup
		if group == "" {
			group = "schoolledger-" + a.ledger.Origin()
		}
		relay := broadcast.NewKafkaRelay(brokers, a.cfg.Broadcast.KafkaTopic, group, a.ledger.Origin())
		defer relay.Close()
		go func() {
			if err := relay.Run(ctx, a.hub); err != nil {
				slog.Error("kafka relay stopped", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           api.New(a.cfg.API, a.ledger, a.sat, a.hub).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving ledger", "school", a.ledger.SchoolID(), "year", a.ledger.FiscalYear(), "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
