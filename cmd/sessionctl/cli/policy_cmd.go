package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/collabhub/collabhub/internal/policy"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Query the role policy",
	}
	cmd.AddCommand(newPolicyCheckCmd(), newPolicyShowCmd())
	return cmd
}

func parseRoleFlag(value string) (policy.Role, error) {
	role, ok := policy.ParseRole(value)
	if !ok {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

type checkResult struct {
	Role       policy.Role `json:"role"`
	Path       string      `json:"path"`
	Allowed    bool        `json:"allowed"`
	RedirectTo string      `json:"redirect_to,omitempty"`
}

func newPolicyCheckCmd() *cobra.Command {
	var roleName, path string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether a role may reach a path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := parseRoleFlag(roleName)
			if err != nil {
				return err
			}
			res := checkResult{Role: role, Path: policy.NormalizePath(path), Allowed: policy.CanAccessRoute(role, path)}
			if !res.Allowed {
				res.RedirectTo = policy.DefaultRoute(role)
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if res.Allowed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s may access %s\n", role, res.Path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s denied %s, redirect to %s\n", role, res.Path, res.RedirectTo)
			return nil
		},
	}
	cmd.Flags().StringVar(&roleName, "role", "", "Role name (admin, brand, creator)")
	cmd.Flags().StringVar(&path, "path", "", "Request path")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

type roleSummary struct {
	Role         policy.Role              `json:"role"`
	DefaultRoute string                   `json:"default_route"`
	Permissions  []string                 `json:"permissions"`
	Features     []policy.FeatureFlag     `json:"features"`
	Navigation   []policy.NavigationEntry `json:"navigation"`
}

func newPolicyShowCmd() *cobra.Command {
	var roleName string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the permissions, features and navigation of a role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := parseRoleFlag(roleName)
			if err != nil {
				return err
			}
			summary := roleSummary{
				Role:         role,
				DefaultRoute: policy.DefaultRoute(role),
				Features:     policy.Features(role),
				Navigation:   policy.RoleNavigation(role),
			}
			for _, p := range policy.Permissions(role) {
				summary.Permissions = append(summary.Permissions, p.String())
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, summary)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ROLE\t%s\n", summary.Role)
			fmt.Fprintf(tw, "DEFAULT ROUTE\t%s\n", summary.DefaultRoute)
			for _, p := range summary.Permissions {
				fmt.Fprintf(tw, "PERMISSION\t%s\n", p)
			}
			for _, f := range summary.Features {
				fmt.Fprintf(tw, "FEATURE\t%s\n", f)
			}
			for _, n := range summary.Navigation {
				fmt.Fprintf(tw, "NAV\t%s\t%s\n", n.Label, n.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&roleName, "role", "", "Role name (admin, brand, creator)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
