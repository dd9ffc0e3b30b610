package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/clustergate/releasegate/internal/cli"
	"github.com/clustergate/releasegate/internal/policy"
)

func newListCmd(stdout io.Writer) *cobra.Command {
	var policyPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the checks of the release policy in execution order",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := loadPolicy(policyPath)
			if err != nil {
				return err
			}
			return cli.FormatCheckList(stdout, p)
		},
	}
	cmd.Flags().StringVarP(&policyPath, "policy", "p", "", "release policy file")
	return cmd
}

func newInitCmd(stdout io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the built-in release policy to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := defaultPolicyFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			data, err := yaml.Marshal(policy.Default())
			if err != nil {
				return fmt.Errorf("encoding policy: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("writing policy: %w", err)
			}
			fmt.Fprintf(stdout, "Wrote %s\n", path) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newSchemaCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the release policy",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := policy.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, string(data))
			return err
		},
	}
}
