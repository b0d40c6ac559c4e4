// Package cmd contains the CLI commands for fieldctl.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const defaultDBPath = "./data/fieldsense.db"

var (
	// Used for flags
	verbose bool
	output  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fieldctl",
	Short: "fieldctl - FieldSense operator tool",
	Long: `fieldctl inspects and exercises a FieldSense deployment.

Examples:
  # Check which alerts a reading would raise with the default thresholds
  fieldctl evaluate moisture=22 temp=36.5

  # Send a reading to a running server
  fieldctl send --server http://localhost:8080 --token $SENSOR_API_TOKEN moisture=22

  # Show recent dispatched alerts
  fieldctl history --db ./data/fieldsense.db --limit 20`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
