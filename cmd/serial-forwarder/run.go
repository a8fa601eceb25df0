package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jatinbhole/serial-forwarder/internal/supervisor"
)

var bufferDir string

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the supervisor and forward all configured ports until signaled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(configFile, bufferDir)
		},
	}
	cmd.Flags().StringVar(&bufferDir, "buffer-dir", ".", "directory holding each port's buffer_<name>.db durable store")
	return cmd
}

// runApp owns OS signal handling and calls Supervisor.Stop within the
// supervisor's own shutdown budget on SIGINT/SIGTERM.
func runApp(configPath, bufferDir string) error {
	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	sup, err := supervisor.New(configPath, bufferDir, logger)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := sup.Start(); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}

	printStatusSummary(sup)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh
	color.Yellow("received shutdown signal, stopping port engines...")
	start := time.Now()
	sup.Stop()
	color.Green("stopped in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func printStatusSummary(sup *supervisor.Supervisor) {
	status := sup.Status()
	color.Cyan("serial-forwarder: %d port(s) running", len(status))
	for name, s := range status {
		fmt.Printf("  %s: transport=%s serial_connected=%v buffered=%d\n",
			name, s.TransportState, s.SerialConnected, s.BufferedCount)
	}
}
