// Command notifier watches today's queue and pushes position updates to
// customers' devices through the push relay.
//
// Usage:
//
//	notifier watch
//	notifier watch --metrics-addr :9102
//	notifier send --to <customer-id> --title "Running late" --body "About 10 minutes behind."
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/barbershop-booking/internal/config"
	"github.com/barbershop-booking/internal/infrastructure/dynamo"
	"github.com/barbershop-booking/internal/infrastructure/redisbus"
	"github.com/barbershop-booking/internal/notifier"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/pkg/id"
	"github.com/barbershop-booking/internal/pkg/metrics"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Queue position notifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(watchCmd())
	root.AddCommand(sendCmd())

	if err := root.Execute(); err != nil {
		logger.Error("notifier failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// watch command
// --------------------------------------------------------------------------

func watchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the queue and push position updates until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.RelayAPIKey == "" {
				return fmt.Errorf("RELAY_API_KEY is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := dynamo.NewClient(ctx, cfg)
			if err != nil {
				return fmt.Errorf("dynamodb client: %w", err)
			}
			devices := dynamo.NewDeviceRepo(client, cfg.DynamoTables.Devices)

			deps := notifier.Deps{
				Appointments: dynamo.NewAppointmentRepo(client, cfg.DynamoTables.Appointments),
				Tokens:       devices,
				Location:     cfg.Location(),
				Interval:     cfg.QueueRefreshInterval,
				RelayURL:     cfg.RelayURL,
				RelayAPIKey:  cfg.RelayAPIKey,
				Client:       &http.Client{Timeout: 10 * time.Second},
				Logger:       logger,
			}
			if cfg.RedisAddr != "" {
				deps.Changes = redisbus.NewBus(redisbus.NewClient(cfg.RedisAddr), cfg.RedisChannel, logger)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return notifier.Run(gctx, deps)
			})
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
				g.Go(func() error {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			logger.Info("Notifier watching queue", "relay", cfg.RelayURL, "timezone", cfg.ShopTimezone)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

// --------------------------------------------------------------------------
// send command
// --------------------------------------------------------------------------

func sendCmd() *cobra.Command {
	var to, title, body string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Push a single notification to a customer's devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.RelayAPIKey == "" {
				return fmt.Errorf("RELAY_API_KEY is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			sink := notify.NewRelaySink(cfg.RelayURL, cfg.RelayAPIKey, nil, &http.Client{Timeout: 10 * time.Second})
			res, err := sink.Deliver(ctx, notify.Message{
				RecipientID:   to,
				Title:         title,
				Body:          body,
				Tag:           "manual-" + to,
				CorrelationID: id.New(),
			})
			if err != nil {
				return fmt.Errorf("send to %s (%s): %w", to, notify.Classify(err), err)
			}
			logger.Info("Notification sent", "to", to, "delivery_id", res.DeliveryID)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Customer ID")
	cmd.Flags().StringVar(&title, "title", "", "Notification title")
	cmd.Flags().StringVar(&body, "body", "", "Notification body")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}
