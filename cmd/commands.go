package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"midori/internal/flog"
	"midori/internal/supervisor"
)

// RUST_LOG is the env var name spec §6 reuses verbatim for verbosity.
const logEnvVar = "RUST_LOG"

// newRootCmd builds the "midori" command tree: a bare run command gated
// on -c/--config, plus the "nav" subcommand. Bare invocation with
// neither a config path nor a subcommand prints help and exits 0 (spec
// §6): RunE calls cmd.Help itself when configPath is empty.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "midori",
		Short:         "Midori is a multi-protocol TCP/UDP relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return cmd.Help()
			}
			return runRelay(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to the JSON configuration file")
	root.AddCommand(newNavCmd())
	return root
}

// runRelay initializes logging and runs the supervisor to completion.
// Startup failures (InvalidConfig, Bind) are reported by the supervisor
// itself via flog.Fatalf, which exits the process directly per spec §7;
// this recover only guards against an unexpected panic escaping startup,
// matching spec §6's "exit non-zero on panic during startup".
func runRelay(configPath string) (err error) {
	flog.Init(logEnvVar)
	defer func() {
		if r := recover(); r != nil {
			flog.Errorf("midori: panic during startup: %v", r)
			err = fmt.Errorf("midori: panic during startup: %v", r)
		}
	}()
	return supervisor.Run(configPath)
}

// newNavCmd wires the "nav" subcommand to an external "midori-nav"
// binary if one is installed; the interactive configuration editor
// itself is an external collaborator (spec §1) with no implementation
// in this core.
func newNavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nav",
		Short: "launch the interactive configuration editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := exec.LookPath("midori-nav")
			if err != nil {
				return fmt.Errorf("midori nav: no midori-nav binary found on PATH: %w", err)
			}
			child := exec.Command(path, args...)
			child.Stdin, child.Stdout, child.Stderr = os.Stdin, os.Stdout, os.Stderr
			return child.Run()
		},
	}
}
