// Command silkhost is a reference host binary demonstrating how a
// native application wires a Runtime together: reading configuration,
// starting the External Handler Bridge, and feeding invoke envelopes
// from stdin as a stand-in for a real webview message channel.
//
// It exists to exercise runtime.Runtime end to end, the way
// cklxx-elephant.ai's own cobra-driven CLI exercises its agent runtime
// (see DESIGN.md, cmd/silkhost entry).
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor(err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "silkhost",
		Short: "Reference host for the Silk IPC runtime",
		Long: `silkhost drives a runtime.Runtime from the command line.

It reads newline-delimited invoke envelopes from standard input, the
same shape a webview would post, and prints the resulting dispatch
scripts to standard output.`,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a silk config file (YAML)")

	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newConfigCommand(&configPath))
	root.AddCommand(newBridgeCommand())

	return root
}

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a runtime and dispatch envelopes read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(*configPath, bufio.NewScanner(os.Stdin), os.Stdout)
		},
	}
}

func newBridgeCommand() *cobra.Command {
	bridgeCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Inspect or exercise the External Handler Bridge in isolation",
	}
	bridgeCmd.AddCommand(&cobra.Command{
		Use:   "exec -- <program> [args...]",
		Short: "Run a child process under the bridge and forward each stdin line as an invoke",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridgeExec(args, bufio.NewScanner(os.Stdin), os.Stdout)
		},
	})
	return bridgeCmd
}

func newConfigCommand(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Work with silkhost configuration files",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load a config file and report whether it parses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(*configPath, cmd.OutOrStdout())
		},
	})
	return configCmd
}
