package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *app) recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List, show, rekey and delete stored envelopes",
	}
	cmd.AddCommand(
		a.recordsListCmd(),
		a.recordsGetCmd(),
		a.recordsDeleteCmd(),
		a.recordsRekeyCmd(),
	)
	return cmd
}

func (a *app) recordsListCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			recs, err := svc.Records(cmd.Context(), typ)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("No records found"))
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tNAME\tCREATED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Type, r.Name, r.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only list records of this type")
	return cmd
}

func (a *app) recordsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Print a stored record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			rec, err := svc.Record(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				ID        string            `json:"id"`
				Name      string            `json:"name"`
				Type      string            `json:"type"`
				Data      any               `json:"data"`
				Metadata  map[string]string `json:"metadata,omitempty"`
				CreatedAt time.Time         `json:"created_at"`
				UpdatedAt time.Time         `json:"updated_at"`
			}{rec.ID, rec.Name, rec.Type, rec.Data, rec.Metadata, rec.CreatedAt, rec.UpdatedAt})
		},
	}
}

func (a *app) recordsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.DeleteRecord(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓"), "Deleted", args[0])
			return nil
		},
	}
}

func (a *app) recordsRekeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rekey ID",
		Short: "Re-encrypt a stored text or key record under a new password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPw, err := promptPassword("Current password: ", passwordEnv)
			if err != nil {
				return err
			}
			defer zeroBytes(oldPw)

			newPw, err := promptNewPassword("New password: ", newPasswordEnv)
			if err != nil {
				return err
			}
			defer zeroBytes(newPw)

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Rekey(cmd.Context(), args[0], oldPw, newPw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓"), "Rekeyed", args[0])
			return nil
		},
	}
}
