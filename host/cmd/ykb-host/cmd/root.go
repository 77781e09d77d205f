// Package cmd implements the ykb-host command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ykb/core"
	"ykb/diag"
	"ykb/host/serial"
	"ykb/protocol"
)

var (
	device  string
	baud    int
	timeout time.Duration
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ykb-host",
	Short: "Host tool for analog split keyboard halves",
	Long: `ykb-host talks to a keyboard half over its USB CDC diagnostic link and
can run the key scan engine on a Linux host.

Device commands (info, thresholds, monitor) need --device.
Local commands (scan, simulate) take a layout file with --config.`,
	Version:       protocol.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&device, "device", "d", "/dev/ttyACM0", "serial device of the keyboard half")
	rootCmd.PersistentFlags().IntVar(&baud, "baud", 115200, "serial baud rate")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", diag.DefaultTimeout, "per request timeout")
}

// dial opens the diagnostic link. Call the returned func to close it.
// A device of the form tcp://host:port connects to ykb-host simulate.
func dial() (*diag.Client, func(), error) {
	if addr, ok := strings.CutPrefix(device, "tcp://"); ok {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, nil, err
		}
		return diag.NewClient(conn), func() { conn.Close() }, nil
	}

	cfg := serial.DefaultConfig(device)
	cfg.Baud = baud
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	core.Logger().Debug("link open", "device", device, "baud", baud)
	return diag.NewClient(port), func() { port.Close() }, nil
}

func requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
