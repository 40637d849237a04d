/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allbin/kiosk-serial"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display the description and USB identity of a serial port.

Examples:
  kiosk-serial info /dev/ttyUSB0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := serial.GetPortInfo(args[0])
		if err != nil {
			return fmt.Errorf("port info: %w", err)
		}

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)
		if d := assignedDevice(info.Path, cfg.Devices); d != "" {
			fmt.Printf("  Assigned to: %s\n", d)
		}

		if !info.IsUSB {
			return nil
		}
		fmt.Println("\nUSB Device Information:")
		if info.VendorID != "" {
			fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
		}
		if info.ProductID != "" {
			fmt.Printf("  Product ID:   %s\n", info.ProductID)
		}
		if info.SerialNumber != "" {
			fmt.Printf("  Serial:       %s\n", info.SerialNumber)
		}
		if info.Product != "" {
			fmt.Printf("  Product:      %s\n", info.Product)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
