package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jatinbhole/serial-forwarder/internal/config"
)

func newValidateConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration document without starting any engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.Load(configFile)
			if err != nil {
				color.Red("invalid configuration: %v", err)
				return err
			}
			color.Green("configuration valid: %d port(s)", len(doc.Ports))
			for _, p := range doc.Ports {
				variant := "tcp"
				if p.HTTPURL != "" {
					variant = "http"
				}
				fmt.Printf("  %s: %s -> %s (%s:%d) buffer_size=%d send_delay=%ds reconnect_interval=%ds\n",
					p.Name, p.SerialPort, variant, p.TCPHost, p.TCPPort, p.BufferSize, p.SendDelay, p.ReconnectInterval)
			}
			return nil
		},
	}
}
