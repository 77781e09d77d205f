package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Read or change the press thresholds of a scanner",
}

var thresholdsGetCmd = &cobra.Command{
	Use:   "get SCANNER",
	Short: "Print the thresholds of a scanner",
	Args:  cobra.ExactArgs(1),
	RunE:  runThresholdsGet,
}

var thresholdsSetCmd = &cobra.Command{
	Use:   "set SCANNER VALUE[,VALUE...]",
	Short: "Replace every threshold of a scanner",
	Long: `Replace the thresholds of a scanner. Exactly one value per key is
required and each must lie in 1..1023. A single value with --all is applied
to every key.

Examples:
  ykb-host thresholds set 0 480,480,520
  ykb-host thresholds set 1 500 --all`,
	Args: cobra.ExactArgs(2),
	RunE: runThresholdsSet,
}

var thresholdsResetCmd = &cobra.Command{
	Use:   "reset SCANNER",
	Short: "Restore the default thresholds of a scanner",
	Args:  cobra.ExactArgs(1),
	RunE:  runThresholdsReset,
}

var setAll bool

func init() {
	rootCmd.AddCommand(thresholdsCmd)
	thresholdsCmd.AddCommand(thresholdsGetCmd, thresholdsSetCmd, thresholdsResetCmd)
	thresholdsSetCmd.Flags().BoolVar(&setAll, "all", false, "apply a single value to every key")
}

func parseScanner(arg string) (uint8, error) {
	idx, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("scanner index %q: %w", arg, err)
	}
	return uint8(idx), nil
}

func parseThresholds(arg string) ([]uint16, error) {
	fields := strings.Split(arg, ",")
	values := make([]uint16, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", f, err)
		}
		values = append(values, uint16(v))
	}
	return values, nil
}

func formatThresholds(values []uint16) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ",")
}

func runThresholdsGet(cmd *cobra.Command, args []string) error {
	idx, err := parseScanner(args[0])
	if err != nil {
		return err
	}
	client, closeLink, err := dial()
	if err != nil {
		return err
	}
	defer closeLink()

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()
	values, err := client.Thresholds(ctx, idx)
	if err != nil {
		return err
	}
	fmt.Println(formatThresholds(values))
	return nil
}

func runThresholdsSet(cmd *cobra.Command, args []string) error {
	idx, err := parseScanner(args[0])
	if err != nil {
		return err
	}
	values, err := parseThresholds(args[1])
	if err != nil {
		return err
	}
	if setAll && len(values) != 1 {
		return fmt.Errorf("--all takes exactly one value, got %d", len(values))
	}

	client, closeLink, err := dial()
	if err != nil {
		return err
	}
	defer closeLink()

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()
	if setAll {
		current, err := client.Thresholds(ctx, idx)
		if err != nil {
			return err
		}
		v := values[0]
		values = current
		for i := range values {
			values[i] = v
		}
	}
	if err := client.SetThresholds(ctx, idx, values); err != nil {
		return err
	}
	fmt.Printf("scanner %d: %s\n", idx, formatThresholds(values))
	return nil
}

func runThresholdsReset(cmd *cobra.Command, args []string) error {
	idx, err := parseScanner(args[0])
	if err != nil {
		return err
	}
	client, closeLink, err := dial()
	if err != nil {
		return err
	}
	defer closeLink()

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()
	if err := client.ResetThresholds(ctx, idx); err != nil {
		return err
	}
	values, err := client.Thresholds(ctx, idx)
	if err != nil {
		return err
	}
	fmt.Printf("scanner %d: %s\n", idx, formatThresholds(values))
	return nil
}
