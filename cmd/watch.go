/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/allbin/kiosk-serial/internal/gateway"
	"github.com/allbin/kiosk-serial/internal/tui/models"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of a running service's device events",
	Long: `Connect to a running service and show its device events in real time:
scanned frames, presence sensor changes and session ends, with the framed
reader's health and the presence state in the status bar.

Keys:
  c        clear the log
  h        toggle hex display of scanned data
  p/space  pause scrolling
  r        refresh health
  q        quit

Example usage:
  kiosk-serial watch
  kiosk-serial watch --addr 127.0.0.1:9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		client, err := gateway.Dial(ctx, cfg.Gateway.Addr, cfg.Gateway.Token)
		cancel()
		if err != nil {
			return err
		}
		defer client.Close()

		m := models.NewWatchModel(client, cfg.Gateway.Addr)
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
