/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/config"
	"github.com/allbin/kiosk-serial/internal/kiosk"
	"github.com/allbin/kiosk-serial/internal/tui/colors"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List the serial ports the kiosk service would report to the UI.

With --table the output also shows the port type, USB identity and which
configured device (if any) the port is assigned to.

Examples:
  kiosk-serial list
  kiosk-serial list --table
  kiosk-serial list --filter usb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := serial.ListPortInfo()
		if err != nil {
			return fmt.Errorf("list ports: %w", err)
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		infos = filterPorts(infos, filterType)
		if len(infos) == 0 {
			if filterType != "" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return nil
		}

		if tableFormat {
			fmt.Println(renderTable(infos, cfg.Devices))
			return nil
		}
		for _, info := range infos {
			fmt.Println(info.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

func filterPorts(infos []serial.PortInfo, filterType string) []serial.PortInfo {
	if filterType == "" || filterType == "all" {
		return infos
	}

	var filtered []serial.PortInfo
	for _, info := range infos {
		name := strings.ToLower(info.Name)
		switch strings.ToLower(filterType) {
		case "usb":
			if info.IsUSB || strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm") {
				filtered = append(filtered, info)
			}
		case "standard":
			if strings.HasPrefix(name, "ttys") || strings.HasPrefix(name, "com") {
				filtered = append(filtered, info)
			}
		case "arm":
			if strings.HasPrefix(name, "ttyama") {
				filtered = append(filtered, info)
			}
		}
	}
	return filtered
}

const (
	colPort    = "port"
	colType    = "type"
	colUSB     = "usb"
	colDevice  = "device"
	colProduct = "product"
)

func renderTable(infos []serial.PortInfo, devices []config.DeviceConfig) string {
	columns := []table.Column{
		table.NewColumn(colPort, "Port", 16),
		table.NewColumn(colType, "Type", 16),
		table.NewColumn(colUSB, "VID:PID", 11),
		table.NewColumn(colProduct, "Product", 24),
		table.NewColumn(colDevice, "Assigned", 14),
	}

	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		usb := ""
		if info.VendorID != "" || info.ProductID != "" {
			usb = info.VendorID + ":" + info.ProductID
		}
		rows = append(rows, table.NewRow(table.RowData{
			colPort:    info.Path,
			colType:    getPortType(info.Name),
			colUSB:     usb,
			colProduct: info.Product,
			colDevice:  assignedDevice(info.Path, devices),
		}))
	}

	t := table.New(columns).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)).
		WithBaseStyle(lipgloss.NewStyle().Foreground(colors.Text).BorderForeground(colors.Surface2).Align(lipgloss.Left))

	return fmt.Sprintf("Found %d serial port(s):\n\n%s", len(infos), t.View())
}

func assignedDevice(path string, devices []config.DeviceConfig) string {
	for _, d := range devices {
		if _, ok := kiosk.MatchPort(d.Port, []string{path}); ok {
			return d.Name
		}
	}
	return ""
}

// getPortType returns a more specific type classification for the port
func getPortType(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	case strings.HasPrefix(name, "com"):
		return "COM Port"
	default:
		return "Serial Port"
	}
}
