package main

import (
	"fmt"
	"strings"

	"github.com/artpar/cloudgate/pkg/cloudclient"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Show the server's driver, version and collections",
	Args:  cobra.NoArgs,
	RunE:  runAPI,
}

var listCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List resources of a collection",
	Long: `List resources of any collection the server advertises.

Examples:
  cloudgate list realms
  cloudgate list images --filter owner_id=self
  cloudgate list instances --filter state=RUNNING`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show <collection> <id>",
	Short: "Show one resource",
	Args:  cobra.ExactArgs(2),
	RunE:  runShow,
}

var actionCmd = &cobra.Command{
	Use:   "action <collection> <id> <action>",
	Short: "Invoke an action advertised by a resource",
	Long: `Invoke an action from a resource's current action table.

Examples:
  cloudgate action instances inst0 stop
  cloudgate action instances inst1 start`,
	Args: cobra.ExactArgs(3),
	RunE: runAction,
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <collection> <id>",
	Short: "Destroy a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  runDestroy,
}

var (
	listFilters  []string
	actionParams []string
)

func init() {
	for _, c := range []*cobra.Command{apiCmd, listCmd, showCmd, actionCmd, destroyCmd} {
		addClientFlags(c)
		rootCmd.AddCommand(c)
	}

	listCmd.Flags().StringArrayVar(&listFilters, "filter", nil, "filter as key=value (repeatable)")
	actionCmd.Flags().StringArrayVar(&actionParams, "param", nil, "action parameter as key=value (repeatable)")
}

func runAPI(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	ep := c.EntryPoint()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "URL:     %s\n", c.BaseURL())
	fmt.Fprintf(out, "Driver:  %s\n", ep.Driver)
	fmt.Fprintf(out, "Version: %s\n\n", ep.Version)

	tw := newTable(out)
	fmt.Fprintln(tw, "COLLECTION\tURL\tFEATURES")
	for _, rel := range ep.Relations() {
		u, _ := ep.URL(rel)
		features := strings.Join(ep.Features(rel), ",")
		if features == "" {
			features = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", rel, u, features)
	}
	return tw.Flush()
}

func runList(cmd *cobra.Command, args []string) error {
	filters, err := parseKeyValues(listFilters)
	if err != nil {
		return err
	}
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	a, err := c.Accessor(args[0])
	if err != nil {
		return err
	}
	resources, err := a.List(commandContext(cmd), filters)
	if err != nil {
		return err
	}
	printList(cmd.OutOrStdout(), resources)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	a, err := c.Accessor(args[0])
	if err != nil {
		return err
	}
	r, err := a.Get(commandContext(cmd), args[1])
	if err != nil {
		return err
	}
	printResource(cmd.OutOrStdout(), r)
	return nil
}

func runAction(cmd *cobra.Command, args []string) error {
	params, err := parseKeyValues(actionParams)
	if err != nil {
		return err
	}
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	a, err := c.Accessor(args[0])
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	r, err := a.Get(ctx, args[1])
	if err != nil {
		return err
	}
	if err := r.Invoke(ctx, args[2], params); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if r.Gone() {
		fmt.Fprintf(out, "%s %s is gone\n", cloudclient.Singular(args[0]), r.ID)
		return nil
	}
	state, _ := r.State()
	fmt.Fprintf(out, "%s %s: %s\n", cloudclient.Singular(args[0]), r.ID, state)
	return nil
}

func runDestroy(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	if err := c.Destroy(commandContext(cmd), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Destroyed %s %s\n", cloudclient.Singular(args[0]), args[1])
	return nil
}
