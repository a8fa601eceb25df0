package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jatinbhole/serial-forwarder/internal/serialutil"
)

func newListPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-ports",
		Short: "Enumerate serial devices visible on this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serialutil.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				color.Yellow("no serial devices found")
				return nil
			}
			for _, p := range ports {
				if p.IsUSB {
					fmt.Printf("%s  (USB vid=%s pid=%s serial=%s)\n", p.Name, p.VID, p.PID, p.SerialNumber)
				} else {
					fmt.Println(p.Name)
				}
			}
			return nil
		},
	}
}
