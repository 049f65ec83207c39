package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/remiblancher/qasn1/pkg/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Signing profiles",
	Long: `Inspect the signing profiles used by "cms sign".

This command provides:
  - list: List the built-in profiles
  - show: Print a profile as YAML

Examples:
  qasn1 profile list
  qasn1 profile show CAdES-EPES
  qasn1 profile show ./my-profile.yaml`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name-or-file>",
	Short: "Print a profile as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	all, err := profile.BuiltinProfiles()
	if err != nil {
		return err
	}
	names, err := profile.BuiltinNames()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tHASH\tDETACHED\tDESCRIPTION")
	for _, n := range names {
		p := all[n]
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.Name, p.Hash, p.Detached, p.Description)
	}
	return tw.Flush()
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	p, err := profile.Load(args[0])
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}
