/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/kiosk-serial/internal/gateway"
	"github.com/allbin/kiosk-serial/internal/session"
	"github.com/allbin/kiosk-serial/internal/tui/styles"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the framed reader's health from a running service",
	Long: `Connect to a running service and print the serial_health report of the
framed reading session, along with the service's app info.

Example usage:
  kiosk-serial health
  kiosk-serial health --addr 127.0.0.1:9000 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		client, err := gateway.Dial(ctx, cfg.Gateway.Addr, cfg.Gateway.Token)
		if err != nil {
			return err
		}
		defer client.Close()

		var info gateway.AppInfo
		if err := client.Call(ctx, "app_info", nil, &info); err != nil {
			return err
		}
		var h session.Health
		if err := client.Call(ctx, "serial_health", nil, &h); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				App    gateway.AppInfo `json:"app"`
				Health session.Health  `json:"health"`
			}{info, h})
		}

		fmt.Println(styles.TitleStyle.Render(fmt.Sprintf("kiosk-serial %s (%s)", info.Version, info.MachineID)))
		fmt.Println()
		label := styles.LabelStyle.Render
		status := styles.Indicator(styles.StatusDisconnected) + " idle"
		if h.IsConnected {
			status = styles.Indicator(styles.StatusConnected) + " connected"
			if !h.IsReading {
				status = styles.Indicator(styles.StatusError) + " connected, reader stopped"
			}
		}
		fmt.Printf("  %s %s\n", label("Status:  "), status)
		if h.Device != "" {
			fmt.Printf("  %s %s\n", label("Port:    "), h.Device)
		}
		fmt.Printf("  %s %ds\n", label("Uptime:  "), h.UptimeSeconds)
		fmt.Printf("  %s %d\n", label("Reads:   "), h.ReadCount)
		fmt.Printf("  %s %s\n", label("Errors:  "), errorCount(h.ErrorCount))
		return nil
	},
}

func errorCount(n uint64) string {
	if n == 0 {
		return "0"
	}
	return styles.ErrorStyle.Render(fmt.Sprint(n))
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().Bool("json", false, "Print the raw JSON report")
}

