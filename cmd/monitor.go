/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/eventbus"
	"github.com/allbin/kiosk-serial/internal/session"
	"github.com/allbin/kiosk-serial/internal/tui/components"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Watch a presence sensor for CTS/DSR changes",
	Long: `Poll CTS and DSR on a port and print every change, exactly as the
service's presence monitoring would emit it. Press Ctrl+C to stop.

The port must not be held by a running service.

Examples:
  kiosk-serial monitor /dev/ttyUSB1
  kiosk-serial monitor /dev/ttyUSB1 --interval 20ms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath := args[0]
		baud, _ := cmd.Flags().GetInt("baud")
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = cfg.Presence.PollInterval
		}

		ch, err := session.Open(serial.Open, portPath,
			serial.WithBaudRate(baud),
			serial.WithReadTimeout(cfg.Presence.ReadTimeout),
		)
		if err != nil {
			return err
		}

		mon := &session.PresenceMonitor{
			Sink:     &printSink{formatter: components.NewEventFormatter()},
			Logger:   appLogger,
			Interval: interval,
		}
		if err := mon.Attach(ch); err != nil {
			ch.Close()
			return err
		}

		fmt.Printf("Monitoring presence on %s every %s\n", portPath, interval)
		fmt.Println("Press Ctrl+C to stop")

		exited := make(chan error, 1)
		ch.Start(mon.Run, func(err error) { exited <- err })

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			fmt.Println("\nStopping monitor...")
		case err := <-exited:
			ch.Close()
			return err
		}
		return ch.Close()
	},
}

// printSink writes events to stdout in the watch dashboard's format.
type printSink struct {
	formatter *components.EventFormatter
}

func (s *printSink) Emit(_ context.Context, name string, payload any) error {
	ev, err := eventbus.NewEvent(name, payload)
	if err != nil {
		return err
	}
	fmt.Println(s.formatter.Format(ev))
	return nil
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntP("baud", "b", 9600, "Baud rate")
	monitorCmd.Flags().DurationP("interval", "i", 0, "Poll interval (default from config, 50ms)")
}

