/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/allbin/kiosk-serial/internal/config"
	"github.com/allbin/kiosk-serial/internal/logger"
)

// Set at link time.
var (
	Version     = "dev"
	ReleaseDate = "unknown"
)

var (
	cfgFile     string
	v           *viper.Viper
	cfg         *config.Config
	appLogger   = slog.Default()
	closeLogger = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kiosk-serial",
	Short: "Serial device service for self-service kiosks",
	Long: `kiosk-serial talks to the serial peripherals of a self-service kiosk:
framed QR/RFID readers, a CTS/DSR human presence sensor and an ESC/POS
receipt printer.

Run "kiosk-serial serve" to expose the devices to the kiosk UI over a local
WebSocket, or use the other commands to inspect ports by hand.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)
		var err error
		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		l, closer, err := logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		appLogger, closeLogger = l, closer
		slog.SetDefault(l)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() { v = config.New(cfgFile) })
	v = config.New("")

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: kiosk-serial.yaml in ~/.config/kiosk-serial, /etc/kiosk-serial or .)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("addr", "", "gateway address (default 127.0.0.1:8765)")
	rootCmd.Version = Version
}

// bindFlags copies explicitly set persistent flags onto the viper instance.
// It runs after cobra.OnInitialize has built v for the chosen config file.
func bindFlags(cmd *cobra.Command) {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		v.Set("logger.level", f.Value.String())
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		v.Set("gateway.addr", f.Value.String())
	}
}
