package cmd

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ykb/config"
	"ykb/core"
	"ykb/diag"
	"ykb/kbhandler"
	"ykb/keyboard"
)

var (
	simInterval time.Duration
	simHold     time.Duration
	simSeed     uint64
	diagAddr    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the scan engine against simulated hardware",
	Long: `Build a keyboard half on simulated ADC and GPIO drivers and type random
keys on it. Without --config the built-in left half layout is used.

With --diag-addr the diagnostic protocol is served over TCP, so the device
commands can be tried against the simulation:

  ykb-host simulate --diag-addr 127.0.0.1:7007 &
  ykb-host info -d tcp://127.0.0.1:7007`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVarP(&layoutPath, "config", "c", "", "layout file")
	simulateCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	simulateCmd.Flags().StringVar(&diagAddr, "diag-addr", "", "serve the diagnostic protocol on this TCP address")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 300*time.Millisecond, "time between simulated presses")
	simulateCmd.Flags().DurationVar(&simHold, "hold", 80*time.Millisecond, "how long a simulated key stays down")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 1, "random seed for the key sequence")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	layout := config.Default()
	if layoutPath != "" {
		var err error
		if layout, err = config.LoadFile(layoutPath); err != nil {
			return err
		}
	}
	layout.ADC.Driver = config.ADCSim

	board := newSimBoard(simSeed)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r := &localRun{
		layout:      layout,
		adc:         board.adc,
		gpio:        board.gpio,
		metricsAddr: metricsAddr,
		ready: func(ctx context.Context, g *errgroup.Group, kb *keyboard.Keyboard, h *kbhandler.Handler) error {
			board.attach(layout, kb)
			g.Go(func() error { return board.typeKeys(ctx, simInterval, simHold) })
			if diagAddr == "" {
				return nil
			}
			ln, err := new(net.ListenConfig).Listen(ctx, "tcp", diagAddr)
			if err != nil {
				return err
			}
			d := &diagListener{ln: ln, kb: kb}
			h.AddSink(d.keySink)
			g.Go(func() error { return d.serve(ctx) })
			return nil
		},
	}
	return r.run(ctx)
}

// diagListener serves one diagnostic client at a time over TCP.
type diagListener struct {
	ln      net.Listener
	kb      *keyboard.Keyboard
	current atomic.Pointer[diag.Server]
}

func (d *diagListener) keySink(ev kbhandler.Event) {
	if s := d.current.Load(); s != nil {
		s.KeySink()(ev)
	}
}

func (d *diagListener) serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		d.ln.Close()
	}()
	log := core.Logger().With("listen", d.ln.Addr().String())
	log.Info("diagnostic server listening")
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		log.Info("diagnostic client connected", "remote", conn.RemoteAddr().String())
		stopClose := context.AfterFunc(ctx, func() { conn.Close() })
		srv := diag.NewServer(conn, d.kb, log)
		d.current.Store(srv)
		err = srv.Serve(ctx)
		d.current.Store(nil)
		stopClose()
		conn.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Info("diagnostic client gone", "err", err)
		}
	}
}
