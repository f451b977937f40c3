package main

import (
	"fmt"

	"github.com/artpar/cloudgate/pkg/cloudclient"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create instances, keys and volumes",
	Long: `Create resources.

Examples:
  cloudgate create instance --image img1
  cloudgate create instance --image img1 --profile m1-large --hwp memory=4096
  cloudgate create key deploy
  cloudgate create volume --capacity 10 --realm us`,
}

var createInstanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Launch an instance from an image",
	Args:  cobra.NoArgs,
	RunE:  runCreateInstance,
}

var createKeyCmd = &cobra.Command{
	Use:   "key <name>",
	Short: "Create a key pair; the private key is printed once",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateKey,
}

var createVolumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Create a storage volume",
	Args:  cobra.NoArgs,
	RunE:  runCreateVolume,
}

var (
	instanceImage  string
	instanceOpts   cloudclient.InstanceOptions
	instanceHWP    []string
	volumeCapacity string
	volumeRealm    string
)

func init() {
	rootCmd.AddCommand(createCmd)
	for _, c := range []*cobra.Command{createInstanceCmd, createKeyCmd, createVolumeCmd} {
		addClientFlags(c)
		createCmd.AddCommand(c)
	}

	f := createInstanceCmd.Flags()
	f.StringVar(&instanceImage, "image", "", "image id (required)")
	f.StringVar(&instanceOpts.Name, "name", "", "instance name")
	f.StringVar(&instanceOpts.RealmID, "realm", "", "realm id")
	f.StringVar(&instanceOpts.HardwareProfile, "profile", "", "hardware profile id")
	f.StringArrayVar(&instanceHWP, "hwp", nil, "hardware profile override as property=value (repeatable)")
	f.StringVar(&instanceOpts.KeyName, "key", "", "key name")
	f.StringVar(&instanceOpts.UserData, "user-data", "", "user data")
	f.StringVar(&instanceOpts.SecurityGroup, "security-group", "", "security group")
	createInstanceCmd.MarkFlagRequired("image")

	createVolumeCmd.Flags().StringVar(&volumeCapacity, "capacity", "", "capacity in GB")
	createVolumeCmd.Flags().StringVar(&volumeRealm, "realm", "", "realm id")
}

func runCreateInstance(cmd *cobra.Command, args []string) error {
	overrides, err := parseKeyValues(instanceHWP)
	if err != nil {
		return err
	}
	opts := instanceOpts
	if len(overrides) > 0 {
		opts.ProfileOverrides = overrides
	}

	c, err := connect(cmd)
	if err != nil {
		return err
	}
	r, err := c.CreateInstance(commandContext(cmd), instanceImage, opts)
	if err != nil {
		return err
	}
	printResource(cmd.OutOrStdout(), r)
	return nil
}

func runCreateKey(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	r, err := c.CreateKey(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fingerprint := "-"
	if r.Has("fingerprint") {
		fingerprint, _ = r.Text("fingerprint")
	}
	fmt.Fprintf(out, "Created key %s (%s)\n", r.ID, fingerprint)
	if r.Has("pem") {
		pem, _ := r.Text("pem")
		fmt.Fprintf(out, "\n%s\n", pem)
		fmt.Fprintln(out, "The private key is not stored by the server. Save it now.")
	}
	return nil
}

func runCreateVolume(cmd *cobra.Command, args []string) error {
	params := cloudclient.Params{}
	if volumeCapacity != "" {
		params["capacity"] = volumeCapacity
	}
	if volumeRealm != "" {
		params["realm_id"] = volumeRealm
	}

	c, err := connect(cmd)
	if err != nil {
		return err
	}
	r, err := c.CreateStorageVolume(commandContext(cmd), params)
	if err != nil {
		return err
	}
	printResource(cmd.OutOrStdout(), r)
	return nil
}
