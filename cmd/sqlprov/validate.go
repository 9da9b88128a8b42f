package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (c *cli) validateCmd() *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a declared schema",
		Long: `Validate decodes a declared schema with the type mapper of the configured
dialect and reports duplicate names, keys and relationships referencing
missing columns or tables, and identifiers that cannot be quoted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			tables, res, err := readSchema(c.cfg, schemaPath)
			if err != nil {
				return err
			}
			if res.HasErrors() {
				color.New(color.FgRed).Fprintf(out, "%s: schema is invalid\n", schemaPath)
			} else {
				color.New(color.FgGreen).Fprintf(out, "%s: %d table(s) ok\n", schemaPath, len(tables))
			}
			fmt.Fprintln(out, res)
			if res.HasErrors() {
				return errors.New("schema validation failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "schema.yaml", "declared schema file")
	return cmd
}
