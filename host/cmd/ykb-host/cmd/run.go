package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"ykb/config"
	"ykb/core"
	"ykb/kbhandler"
	"ykb/keyboard"
	"ykb/kscan"
	"ykb/kscanmetrics"
)

// localRun drives a keyboard half built in this process.
type localRun struct {
	layout      *config.Layout
	adc         core.ADCDriver
	gpio        core.GPIODriver
	metricsAddr string

	// ready, if set, runs after the keyboard is built and before it starts.
	// Long running work goes into g.
	ready func(ctx context.Context, g *errgroup.Group, kb *keyboard.Keyboard, h *kbhandler.Handler) error
}

// layoutLogger applies the layout log level unless --verbose was given.
func layoutLogger(layout *config.Layout) (*slog.Logger, error) {
	level, err := layout.Level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	core.SetLogger(log)
	return log.With("half", layout.Name), nil
}

func printEvent(ev kbhandler.Event) {
	fmt.Printf("%s  key %3d %s\n", time.Now().Format("15:04:05.000"), ev.Index, ev.Kind)
}

// run builds the keyboard, starts scanning and blocks until ctx is done or
// every scan goroutine has stopped.
func (r *localRun) run(ctx context.Context) error {
	log, err := layoutLogger(r.layout)
	if err != nil {
		return err
	}

	handler := kbhandler.New(r.layout.Events.QueueSize, log, printEvent)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics, err := kscanmetrics.New(reg, r.layout.Name)
	if err != nil {
		return err
	}

	kb, err := keyboard.New(r.layout, r.adc, r.gpio, keyboard.Options{
		Listeners: []kscan.Listener{handler.Listener(), metrics.Listener()},
		Hooks: metrics.Hooks(kscan.Hooks{
			TaskExited: func(e *kscan.TaskError) {
				log.Error("scan task stopped", "unit", e.Unit, "error", e.Err)
			},
		}),
		Logger: log,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return handler.Run(gctx) })
	if r.metricsAddr != "" {
		srv := kscanmetrics.NewServer(r.metricsAddr, reg, log)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if r.ready != nil {
		if err := r.ready(gctx, g, kb, handler); err != nil {
			return err
		}
	}

	kb.Start()
	log.Info("scanning", "keys", kb.KeyCount(), "tasks", kb.Running())

	stopped := make(chan struct{})
	go func() {
		kb.Wait()
		close(stopped)
	}()
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-stopped:
			return errors.New("all scan tasks stopped")
		}
	})

	err = g.Wait()
	if n := handler.Dropped(); n > 0 {
		log.Warn("key events dropped", "count", n)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
