package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/fieldsense/internal/alerting"
	"github.com/good-yellow-bee/fieldsense/internal/models"
)

var evalThresholdsFile string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate field=value...",
	Short: "Evaluate a reading against the alert thresholds",
	Long: `Evaluate a reading offline and print the alerts it would raise.
No cooldown, weather or notification is involved.

Fields: moisture, ph, temp, nitrogen.

Examples:
  fieldctl evaluate moisture=22 ph=8.1
  fieldctl evaluate --thresholds thresholds.yaml temp=33`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		thresholds := alerting.DefaultThresholds()
		if evalThresholdsFile != "" {
			t, err := alerting.LoadThresholdsFromFile(evalThresholdsFile)
			if err != nil {
				return err
			}
			thresholds = t
			PrintVerbose("loaded thresholds from %s", evalThresholdsFile)
		}

		payload, err := parseFieldArgs(args)
		if err != nil {
			return err
		}
		reading := models.ReadingFromMap(payload, time.Now())
		alerts := alerting.NewEngine(thresholds).Evaluate(reading)

		out := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return printJSON(out, alerts)
		}
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No alerts.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tSEVERITY\tMESSAGE")
		for _, a := range alerts {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Kind, a.Severity, a.Message)
		}
		return tw.Flush()
	},
}

// parseFieldArgs turns field=value arguments into a reading payload.
func parseFieldArgs(args []string) (map[string]any, error) {
	payload := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected field=value", arg)
		}
		payload[key] = strings.TrimSpace(value)
	}
	return payload, nil
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evalThresholdsFile, "thresholds", "", "YAML thresholds file (default: built-in thresholds)")
}
