// Command iasm translates assembly source into the big-endian object file
// format the simulator loads, plus a human-readable disassembly log.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mregsim/internal/assembler"
	"mregsim/internal/objfile"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "iasm",
		Short: "Two-pass translator for the register-machine assembly language",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(args[0], args[1])
		},
	}

	assembleCmd := &cobra.Command{
		Use:   "assemble <source.asm> <target>",
		Short: "Assemble a source file into <target>.o and <target>.txt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(args[0], args[1])
		},
	}

	rootCmd.AddCommand(assembleCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAssemble(sourcePath, target string) error {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("iasm: %w", err)
	}

	res, err := assembler.Assemble(string(src))
	if err != nil {
		return fmt.Errorf("iasm: %w", err)
	}

	objPath := target
	if strings.ToLower(filepath.Ext(objPath)) != ".o" {
		objPath += ".o"
	}
	if err := objfile.WriteFile(objPath, res.Data, res.Code, res.EntryPoint); err != nil {
		return fmt.Errorf("iasm: %w", err)
	}

	logPath := strings.TrimSuffix(objPath, filepath.Ext(objPath)) + ".txt"
	if err := os.WriteFile(logPath, []byte(res.Log), 0o644); err != nil {
		return fmt.Errorf("iasm: writing log: %w", err)
	}

	fmt.Printf("assembled %s -> %s (%d data words, %d code words, entry %#x)\n",
		sourcePath, objPath, len(res.Data), len(res.Code), res.EntryPoint)
	fmt.Printf("disassembly written to %s\n", logPath)
	return nil
}
