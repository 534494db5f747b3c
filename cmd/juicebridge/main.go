// Command juicebridge bridges a JuiceBox EV charger's UDP telemetry and
// command protocol to its vendor cloud, decoding and re-encoding every
// frame in flight and exposing the charger to Home Assistant over MQTT.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "juicebridge",
	Short: "JuiceBox MITM bridge",
	Long: `juicebridge sits between a JuiceBox EV charger and its vendor cloud.

It decodes and re-encodes the charger's UDP telemetry/command protocol,
relaying frames between the device and the cloud, and exposes the
charger to Home Assistant as a set of MQTT-discoverable entities.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
}
