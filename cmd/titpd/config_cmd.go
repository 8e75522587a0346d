package main

import (
	"fmt"

	"github.com/danmuck/titpd/internal/config"
	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or check server and schema config files",
	}

	var (
		kind   string
		output string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := output
			if target == "" {
				target = defaultConfigPath(kind)
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config template to %s\n", kind, target)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&kind, "kind", "k", "server", "config kind: server|schema")
	initCmd.Flags().StringVarP(&output, "output", "o", "", "output path (defaults per kind)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var (
		checkKind string
		input     string
	)
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a config file and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := input
			if path == "" {
				path = defaultConfigPath(checkKind)
			}
			switch checkKind {
			case "server":
				cfg, err := config.Load(path)
				if err != nil {
					return err
				}
				if _, err := cfg.Codec(); err != nil {
					return err
				}
			case "schema":
				if _, err := iso8583.LoadSchema(path); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown config kind: %s", checkKind)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated %s config at %s\n", checkKind, path)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&checkKind, "kind", "k", "server", "config kind: server|schema")
	validateCmd.Flags().StringVarP(&input, "input", "i", "", "config path (defaults per kind)")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

func defaultConfigPath(kind string) string {
	if kind == "schema" {
		return "schema.toml"
	}
	return "titpd.toml"
}
