package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs <collection> [operation]",
	Short: "Show the server's documentation for a collection or operation",
	Example: `  cloudgate docs instances
  cloudgate docs instances create`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDocs,
}

func init() {
	addClientFlags(docsCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	operation := ""
	if len(args) == 2 {
		operation = args[1]
	}
	d, err := c.Documentation(commandContext(cmd), args[0], operation)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if operation == "" {
		fmt.Fprintf(out, "%s\n\n%s\n\nOperations: %s\n", d.Collection, d.Description, strings.Join(d.Operations, ", "))
		return nil
	}

	fmt.Fprintf(out, "%s %s\n%s %s\n\n%s\n", d.Collection, d.Operation, d.Method, d.URL, d.Description)
	if len(d.Parameters) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw := newTable(out)
	fmt.Fprintln(tw, "PARAMETER\tTYPE\tREQUIRED\tVALUES")
	for _, p := range d.Parameters {
		values := strings.Join(p.Values, "|")
		if values == "" {
			values = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.Name, p.Type, p.Required, values)
	}
	return tw.Flush()
}
