package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print key edges as the half reports them",
	Long: `Enable key tracing on the half and print every press and release until
interrupted. Tracing is switched off again on exit.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	client, closeLink, err := dial()
	if err != nil {
		return err
	}
	defer closeLink()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	reqCtx, cancel := requestContext(ctx)
	err = client.Trace(reqCtx, true)
	cancel()
	if err != nil {
		return fmt.Errorf("enable trace: %w", err)
	}
	defer func() {
		off, cancel := requestContext(context.Background())
		defer cancel()
		client.Trace(off, false)
	}()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			if n := client.DroppedEvents(); n > 0 {
				fmt.Fprintf(os.Stderr, "%d events dropped\n", n)
			}
			return nil
		case <-client.Done():
			return client.Err()
		case ev := <-client.Events():
			fmt.Printf("%10.3fs  key %3d %s\n", time.Since(start).Seconds(), ev.Index, ev.Kind)
		}
	}
}
