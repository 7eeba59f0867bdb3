/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/container"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/spf13/cobra"
)

// policyCmd represents the policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print the workflow policy",
	Long: `Print the loaded workflow policy: the DRD axis catalog with maturity
level titles, the role permission matrix and the numeric workflow rules.
With --openfga-model the OpenFGA authorization model is printed instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if fga, _ := cmd.Flags().GetBool("openfga-model"); fga {
			_, err := fmt.Fprintln(out, auth.GetPermissionModel())
			return err
		}

		cfg, err := LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		p, err := container.LoadPolicy(cfg.Workflow)
		if err != nil {
			return fmt.Errorf("failed to load workflow policy: %w", err)
		}
		return printPolicy(out, p)
	},
}

func printPolicy(out io.Writer, p *policy.Policy) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	rules := p.Rules()
	fmt.Fprintf(w, "RULES\n")
	fmt.Fprintf(w, "  review quorum\t%d\n", rules.ReviewQuorum)
	fmt.Fprintf(w, "  min justification length\t%d\n", rules.MinJustificationLength)
	fmt.Fprintf(w, "  max comment depth\t%d\n", rules.MaxCommentDepth)
	fmt.Fprintf(w, "  review SLA days\t%d\n\n", rules.ReviewSLADays)

	fmt.Fprintf(w, "AXES\n")
	for _, axis := range p.Axes() {
		fmt.Fprintf(w, "  %s\t%s\n", axis.ID, axis.Name)
		for level := 1; level <= policy.MaturityLevels; level++ {
			fmt.Fprintf(w, "    %d\t%s\n", level, axis.LevelTitle(level))
		}
	}

	fmt.Fprintf(w, "\nROLES\n")
	for _, role := range p.Roles() {
		perms := p.Permissions(role)
		names := make([]string, len(perms))
		for i, perm := range perms {
			names[i] = string(perm)
		}
		fmt.Fprintf(w, "  %s\t%s\n", role, strings.Join(names, ", "))
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(policyCmd)

	policyCmd.Flags().Bool("openfga-model", false, "Print the OpenFGA authorization model")
}
