package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/cipherbox/auth"
	"github.com/Hussein-Mazeh/cipherbox/internal/service"
)

func (a *app) passwordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Generate and check passwords",
	}
	cmd.AddCommand(a.passwordGenerateCmd(), a.passwordCheckCmd())
	return cmd
}

func (a *app) passwordGenerateCmd() *cobra.Command {
	var (
		length  int
		classes string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := auth.ParseClasses(classes)
			if err != nil {
				return err
			}
			pw, err := auth.GeneratePassword(length, c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pw)
			return nil
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", 20, "password length")
	cmd.Flags().StringVar(&classes, "classes", "luds", "character classes: l(ower) u(pper) d(igits) s(ymbols)")
	return cmd
}

func (a *app) passwordCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Estimate the strength of a password and apply the password policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := promptPassword("Password to check: ", passwordEnv)
			if err != nil {
				return err
			}
			defer zeroBytes(pw)

			st, policyErr := service.CheckPassword(string(pw))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Strength: %s (score %d/4, %.1f bits)\n", st.Label(), st.Score, st.Entropy)
			fmt.Fprintf(out, "Estimated crack time: %s\n", st.CrackTime)
			if policyErr != nil {
				fmt.Fprintln(out, color.YellowString("Policy:"), policyErr)
				return nil
			}
			fmt.Fprintln(out, color.GreenString("Policy:"), "ok")
			return nil
		},
	}
}
