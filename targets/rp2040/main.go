//go:build rp2040

// Firmware for one analog keyboard half on an RP2040. The layout is
// embedded at build time; the diagnostic protocol is served on USB CDC and
// logs go to UART0.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"machine"
	"time"

	"ykb/config"
	"ykb/core"
	"ykb/diag"
	"ykb/kbhandler"
	"ykb/keyboard"
	"ykb/kscan"
)

//go:embed layout.yaml
var layoutYAML []byte

func main() {
	// Clear any watchdog state left over from before the reset.
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	InitDebugUART()
	link := InitUSB()

	layout, err := config.Load(layoutYAML)
	if err != nil {
		core.DebugAsync("layout: " + err.Error() + ", using built-in default")
		layout = config.Default()
	}
	level, _ := layout.Level()
	log := core.NewDebugLogger(level).With("half", layout.Name)
	core.SetLogger(log)

	adc, err := openADC(layout)
	if err != nil {
		halt(log, err)
	}
	core.SetADCDriver(adc)
	core.SetGPIODriver(NewRPGPIODriver())

	handler := kbhandler.New(layout.Events.QueueSize, log)
	kb, err := keyboard.New(layout, core.MustADC(), core.MustGPIO(), keyboard.Options{
		Listeners: []kscan.Listener{handler.Listener()},
		Hooks: kscan.Hooks{
			TaskExited: func(e *kscan.TaskError) {
				log.Error("scan task stopped", "unit", e.Unit, "err", e.Err)
			},
		},
		Logger: log,
	})
	if err != nil {
		halt(log, err)
	}

	srv := diag.NewServer(link, kb, log)
	handler.AddSink(srv.KeySink())

	ctx := context.Background()
	go handler.Run(ctx)
	kb.Start()

	for {
		if err := srv.Serve(ctx); err != nil {
			log.Warn("diagnostic link restarting", "err", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func openADC(layout *config.Layout) (core.ADCDriver, error) {
	switch layout.ADC.Driver {
	case config.ADCInternal:
		return NewRPADCDriver(), nil
	case config.ADCMCP3008:
		return NewMCP3008Driver(core.GPIOPin(layout.ADC.CSPin))
	}
	return nil, fmt.Errorf("adc driver %q not available on rp2040: %w", layout.ADC.Driver, core.ErrConfigurationMismatch)
}

// halt logs err forever. Scanning never started, so there is nothing else
// to do until the board is reflashed.
func halt(log *slog.Logger, err error) {
	for {
		log.Error("keyboard halted", "err", err)
		time.Sleep(5 * time.Second)
	}
}
