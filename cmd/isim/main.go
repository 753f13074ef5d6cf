// Command isim loads an assembled object file and an input-schedule file
// and runs the tick-accurate simulator to completion.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mregsim/internal/cpu"
	"mregsim/internal/datapath"
	"mregsim/internal/objfile"
	"mregsim/internal/schedule"
)

func main() {
	var logPath string
	var trace bool

	rootCmd := &cobra.Command{
		Use:   "isim",
		Short: "Tick-accurate simulator for the register-machine object format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(args[0], args[1], logPath, trace)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <object> <input-schedule>",
		Short: "Run an object file against a scheduled input file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(args[0], args[1], logPath, trace)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to write the per-instruction execution log (default <object>.simlog)")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "Echo each executed instruction's log line to stderr as it runs")

	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulation(objectPath, inputPath, logPath string, trace bool) error {
	objectFile := objectPath
	if strings.ToLower(filepath.Ext(objectFile)) != ".o" {
		objectFile += ".o"
	}
	img, err := objfile.ReadFile(objectFile)
	if err != nil {
		return fmt.Errorf("isim: %w", err)
	}

	events, err := schedule.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("isim: %w", err)
	}

	dp := datapath.New()
	dp.Data = img.Data
	dp.Code = img.Code

	c := cpu.New(dp, img.EntryPoint)
	c.LoadInputSchedule(events)
	if trace {
		c.Trace = func(l cpu.LogLine) { fmt.Fprintln(os.Stderr, l.String()) }
	}

	runErr := c.Run()

	if logPath == "" {
		logPath = strings.TrimSuffix(objectFile, filepath.Ext(objectFile)) + ".simlog"
	}
	if writeErr := writeLog(logPath, c.Log); writeErr != nil {
		return fmt.Errorf("isim: writing log: %w", writeErr)
	}

	fmt.Print(string(dp.OutPorts[0]))

	if runErr != nil {
		return fmt.Errorf("isim: %w (after %d instructions, %d ticks)", runErr, c.Counter, c.Tick)
	}
	fmt.Fprintf(os.Stderr, "\nhalted after %d instructions, %d ticks\n", c.Counter, c.Tick)
	return nil
}

func writeLog(path string, lines []cpu.LogLine) error {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
