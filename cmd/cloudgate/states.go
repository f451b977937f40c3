package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Show the instance lifecycle advertised by the server",
	Long: `Show the instance state machine: every state, its transitions and
whether each fires on an action or automatically.`,
	Args: cobra.NoArgs,
	RunE: runStates,
}

func init() {
	addClientFlags(statesCmd)
	rootCmd.AddCommand(statesCmd)
}

func runStates(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	m, err := c.InstanceStates(commandContext(cmd))
	if err != nil {
		return err
	}

	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "STATE\tTO\tTRIGGER")
	for _, s := range m.States() {
		name := s.Name
		if name == m.Start() {
			name += " (start)"
		}
		if s.IsTerminal() {
			fmt.Fprintf(tw, "%s\t-\tterminal\n", name)
			continue
		}
		for _, t := range s.Transitions {
			trigger := t.Action
			if t.IsAutomatic() {
				trigger = "automatic"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", name, t.To, trigger)
			name = ""
		}
	}
	return tw.Flush()
}
