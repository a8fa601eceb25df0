// Command serial-forwarder runs the supervisor described by a JSON
// configuration document, forwarding bytes from one or more serial ports to
// their configured remote endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "serial-forwarder",
		Short: "Forward serial port byte streams to remote network endpoints",
		Long: "serial-forwarder reads from one or more serial devices, groups bytes into\n" +
			"idle-delimited messages, and delivers them to remote TCP or HTTP endpoints,\n" +
			"persisting anything undelivered to a local durable buffer.",
		Version: version,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "config.json", "path to the JSON configuration document")

	root.AddCommand(newRunCommand())
	root.AddCommand(newListPortsCommand())
	root.AddCommand(newValidateConfigCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
