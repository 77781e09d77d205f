package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ykb/diag"
)

var outputJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "List the scanners of a keyboard half",
	Long: `Identify the keyboard half on --device and list its scanners with their
kind, key index range and key count.

Examples:
  ykb-host info -d /dev/ttyACM0
  ykb-host info --json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	client, closeLink, err := dial()
	if err != nil {
		return err
	}
	defer closeLink()

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()
	info, err := client.Identify(ctx)
	if err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	printInfo(info)
	return nil
}

func printInfo(info diag.Info) {
	fmt.Printf("firmware %s, %d scanners\n\n", info.Version, len(info.Scanners))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDX\tNAME\tKIND\tKEYS\tRANGE")
	for _, s := range info.Scanners {
		last := int(s.Offset) + int(s.Keys) - 1
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d..%d\n", s.Index, s.Name, s.Kind, s.Keys, s.Offset, last)
	}
	w.Flush()
}
