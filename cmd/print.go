/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/allbin/kiosk-serial/internal/config"
	"github.com/allbin/kiosk-serial/internal/gateway"
	"github.com/allbin/kiosk-serial/internal/kiosk"
)

// printCmd represents the print command
var printCmd = &cobra.Command{
	Use:   "print <job.json>",
	Short: "Print a receipt job on the ESC/POS printer",
	Long: `Print a job file on the receipt printer. The file holds the same JSON the
UI sends with the print command:

  {
    "port": "/dev/ttyUSB2",
    "baud": 115200,
    "commands": [
      {"type": "alignment", "value": "center"},
      {"type": "large_text"},
      {"type": "text", "value": "Queue 42"},
      {"type": "qr_code", "value": "https://example.com/t/42"},
      {"type": "full_cut"}
    ]
  }

Port and baud may be left out; they then come from the configured PRINTER
device or the --port/--baud flags. With --gateway the job is submitted to a
running service instead of opening the port directly.

Example usage:
  kiosk-serial print ticket.json
  kiosk-serial print ticket.json --port /dev/ttyUSB2 --baud 115200
  kiosk-serial print ticket.json --gateway`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := readJob(args[0])
		if err != nil {
			return err
		}

		port, _ := cmd.Flags().GetString("port")
		baud, _ := cmd.Flags().GetInt("baud")
		useGateway, _ := cmd.Flags().GetBool("gateway")
		applyPrinterDefaults(&job, cfg, port, baud)

		ctx := cmd.Context()
		if useGateway {
			client, err := gateway.Dial(ctx, cfg.Gateway.Addr, cfg.Gateway.Token)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Call(ctx, "print", job, nil); err != nil {
				return err
			}
		} else {
			if job.Port == "" || job.Baud <= 0 {
				return fmt.Errorf("%w: no printer port configured", kiosk.ErrInvalidRequest)
			}
			if err := newPrinter(cfg).Print(ctx, job.Port, job.Baud, job.Commands); err != nil {
				return err
			}
		}

		fmt.Printf("Printed %d commands on %s\n", len(job.Commands), job.Port)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(printCmd)

	printCmd.Flags().StringP("port", "p", "", "Printer port (overrides the job and config)")
	printCmd.Flags().IntP("baud", "b", 0, "Printer baud rate (overrides the job and config)")
	printCmd.Flags().BoolP("gateway", "g", false, "Submit the job through a running service")
}

func readJob(path string) (kiosk.PrintRequest, error) {
	var job kiosk.PrintRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return job, fmt.Errorf("read job: %w", err)
	}
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("decode job %s: %w", path, err)
	}
	return job, nil
}

func applyPrinterDefaults(job *kiosk.PrintRequest, c *config.Config, port string, baud int) {
	if d, ok := c.Device(config.DevicePrinter); ok {
		if job.Port == "" {
			job.Port = d.Port
		}
		if job.Baud <= 0 {
			job.Baud = d.Baud
		}
	}
	if port != "" {
		job.Port = port
	}
	if baud > 0 {
		job.Baud = baud
	}
}
