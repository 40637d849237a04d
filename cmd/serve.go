/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/config"
	"github.com/allbin/kiosk-serial/internal/eventbus"
	"github.com/allbin/kiosk-serial/internal/gateway"
	"github.com/allbin/kiosk-serial/internal/kiosk"
	"github.com/allbin/kiosk-serial/internal/printer"
)

const shutdownTimeout = 5 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk serial service",
	Long: `Run the serial service for the kiosk UI.

The service listens on the configured gateway address (default
127.0.0.1:8765) and accepts WebSocket connections on /ws. Device events are
pushed to every connected client; the UI starts and stops the framed reader
and the presence monitor, and submits print jobs, through RPC calls.

With autostart enabled the configured devices are started immediately:
HUMAN_SENSOR gets presence monitoring and the first other non-printer device
gets framed reading.

Example usage:
  kiosk-serial serve
  kiosk-serial serve --config /etc/kiosk-serial/kiosk-serial.yaml
  KIOSK_SERIAL_GATEWAY_TOKEN=s3cret kiosk-serial serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newPrinter(c *config.Config) *printer.Printer {
	return &printer.Printer{
		Open:         serial.Open,
		Logger:       appLogger,
		WriteTimeout: c.Printer.WriteTimeout,
		DPI:          c.Printer.DPI,
		WidthMM:      c.Printer.WidthMM,
	}
}

func serve(ctx context.Context, c *config.Config) error {
	events := eventbus.New(appLogger)
	defer events.Close()

	svc := kiosk.New(kiosk.Options{
		Sink:                events,
		Logger:              appLogger,
		Printer:             newPrinter(c),
		ReadTimeout:         c.Reader.ReadTimeout,
		PresenceInterval:    c.Presence.PollInterval,
		PresenceReadTimeout: c.Presence.ReadTimeout,
	})

	srv := gateway.NewServer(events, gateway.NewStaticTokenAuth(c.Gateway.Token), c.Gateway.Addr, appLogger)
	gateway.RegisterKioskHandlers(srv, svc, gateway.AppInfo{
		Version:     Version,
		ReleaseDate: ReleaseDate,
		MachineID:   c.MachineID,
	}, appLogger)
	if err := srv.Listen(); err != nil {
		return err
	}
	if c.Gateway.Token == "" {
		appLogger.Warn("gateway token not set, accepting every local client")
	}

	if c.Autostart {
		res := svc.Autostart(c.Devices)
		for name, reason := range res.Errors {
			appLogger.Error("autostart failed", "device", name, "error", reason)
		}
	}

	stopHealth := func(context.Context) {}
	if c.HealthLog != "" {
		var err error
		if stopHealth, err = svc.StartHealthLog(c.HealthLog); err != nil {
			svc.Close()
			return err
		}
	}

	appLogger.Info("kiosk serial service started",
		"version", Version, "machine_id", c.MachineID, "addr", srv.BoundAddr())
	serveErr := srv.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	stopHealth(shutdownCtx)
	closeErr := svc.Close()
	appLogger.Info("kiosk serial service stopped")

	if err := errors.Join(serveErr, closeErr); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
