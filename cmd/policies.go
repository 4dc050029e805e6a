package cmd

import (
	"fmt"
	"io"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/yass-sim/yass/sim"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List the available schedulers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPolicies(cmd.OutOrStdout())
	},
}

func listPolicies(w io.Writer) error {
	for _, id := range sim.PolicyIDs() {
		p, err := sim.NewPolicy(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s %s\n", color.Cyan.Sprintf("%-10s", id), p.Name())
	}
	return nil
}
