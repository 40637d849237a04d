/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/framing"
)

// sendCmd represents the send-frame command
var sendCmd = &cobra.Command{
	Use:   "send-frame [data] <port>",
	Short: "Send an STX/ETX framed message to a serial port",
	Long: `Send one message wrapped in STX (0x02) and ETX (0x03), the way a QR or
RFID reader delivers scans. Point it at the far end of a null-modem cable or
a pty pair to drive a running service's framed reading.

Data can be given as an argument or piped on stdin.

Example usage:
  kiosk-serial send-frame "TICKET-0042" /dev/ttyUSB3
  echo -n 5449434b4554 | kiosk-serial send-frame --hex /dev/ttyUSB3
  kiosk-serial send-frame --raw "no framing" /dev/ttyUSB3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data, portPath string
		if len(args) == 1 {
			portPath = args[0]
			stdinData, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			data = strings.TrimRight(string(stdinData), "\r\n")
		} else {
			data, portPath = args[0], args[1]
		}

		baudRate, _ := cmd.Flags().GetInt("baud")
		hexMode, _ := cmd.Flags().GetBool("hex")
		raw, _ := cmd.Flags().GetBool("raw")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		payload := []byte(data)
		if hexMode {
			decoded, err := parseHexString(data)
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
			payload = decoded
		}
		if !raw {
			payload = frame(payload)
		}

		return sendData(portPath, payload, timeout, serial.WithBaudRate(baudRate))
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().IntP("baud", "b", 9600, "Baud rate")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().Bool("raw", false, "Send data without STX/ETX framing")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for sending data")
}

func frame(data []byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, framing.STX)
	out = append(out, data...)
	return append(out, framing.ETX)
}

func parseHexString(hexStr string) ([]byte, error) {
	hexStr = strings.ReplaceAll(hexStr, " ", "")
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")

	if len(hexStr)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length")
	}

	result := make([]byte, 0, len(hexStr)/2)
	for i := 0; i < len(hexStr); i += 2 {
		hexByte := hexStr[i : i+2]
		var b byte
		if _, err := fmt.Sscanf(hexByte, "%x", &b); err != nil {
			return nil, fmt.Errorf("invalid hex byte '%s': %v", hexByte, err)
		}
		result = append(result, b)
	}
	return result, nil
}

func sendData(portPath string, data []byte, timeout time.Duration, opts ...serial.Option) error {
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), portPath)

	port, err := serial.Open(portPath, opts...)
	if err != nil {
		return fmt.Errorf("%s %v", errorStyle.Render("✗"), err)
	}
	defer port.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := port.WriteContext(ctx, data)
	if err != nil {
		return fmt.Errorf("%s failed to send data: %v", errorStyle.Render("✗"), err)
	}
	if err := port.Drain(); err != nil {
		return fmt.Errorf("%s drain: %v", errorStyle.Render("✗"), err)
	}

	fmt.Printf("%s Sent %d bytes: % X\n", successStyle.Render("✓"), n, data)
	return nil
}
