package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ykb/config"
	"ykb/hal/periph"
)

var (
	layoutPath  string
	metricsAddr string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a keyboard half wired to this host",
	Long: `Run the key scan engine on a Linux host. Select and enable lines are
driven through the host GPIO character device and key voltages are read from
an ADS1115 on I2C. The layout must use the ads1115 ADC driver.

Examples:
  ykb-host scan --config right.yaml
  ykb-host scan --config right.yaml --metrics-addr :9105`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&layoutPath, "config", "c", "", "layout file")
	scanCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	scanCmd.MarkFlagRequired("config")
}

func runScan(cmd *cobra.Command, args []string) error {
	layout, err := config.LoadFile(layoutPath)
	if err != nil {
		return err
	}
	if layout.ADC.Driver != config.ADCADS1115 {
		return fmt.Errorf("adc driver %q cannot run on a host, use %q", layout.ADC.Driver, config.ADCADS1115)
	}

	adc, err := periph.OpenADS1115(layout.ADC.I2CBus, layout.ADC.I2CAddr)
	if err != nil {
		return err
	}
	defer adc.Close()
	gpio, err := periph.NewGPIO()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &localRun{layout: layout, adc: adc, gpio: gpio, metricsAddr: metricsAddr}
	return r.run(ctx)
}
