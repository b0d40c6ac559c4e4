package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	sendServer   string
	sendToken    string
	sendDeviceID string
	sendTimeout  time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send field=value...",
	Short: "Send a reading to a running server",
	Long: `Send a reading to /api/v1/readings and print the server's response.

The sensor token defaults to $SENSOR_API_TOKEN.

Example:
  fieldctl send --server http://localhost:8080 --device plot-4 moisture=18 temp=37`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := parseFieldArgs(args)
		if err != nil {
			return err
		}
		if sendDeviceID != "" {
			payload["device_id"] = sendDeviceID
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		url := strings.TrimSuffix(sendServer, "/") + "/api/v1/readings"
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		token := sendToken
		if token == "" {
			token = os.Getenv("SENSOR_API_TOKEN")
		}
		if token != "" {
			req.Header.Set("X-Sensor-Token", token)
		}

		PrintVerbose("POST %s", url)
		client := &http.Client{Timeout: sendTimeout}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("send reading: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, respBody, "", "  "); err != nil {
			_, err = cmd.OutOrStdout().Write(respBody)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendServer, "server", "http://localhost:8080", "server base URL")
	sendCmd.Flags().StringVar(&sendToken, "token", "", "sensor token (default: $SENSOR_API_TOKEN)")
	sendCmd.Flags().StringVar(&sendDeviceID, "device", "", "device id")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 15*time.Second, "request timeout")
}
