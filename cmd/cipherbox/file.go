package main

import (
	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/cipherbox/internal/service"
	"github.com/Hussein-Mazeh/cipherbox/store"
)

func (a *app) fileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Encrypt and decrypt files in chunks",
	}
	cmd.AddCommand(a.fileEncryptCmd(), a.fileDecryptCmd())
	return cmd
}

func (a *app) fileEncryptCmd() *cobra.Command {
	var outDir, envPath, name string
	cmd := &cobra.Command{
		Use:   "encrypt PATH",
		Short: "Encrypt a file into PATH.cbx and write its envelope alongside",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := promptNewPassword("Enter password: ", passwordEnv)
			if err != nil {
				return err
			}
			defer zeroBytes(pw)

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			s, progress, cleanup := a.startSpinner(cmd, "Encrypting "+args[0])
			defer cleanup()

			out, env, err := svc.EncryptFile(cmd.Context(), args[0], outDir, pw, progress)
			if err != nil {
				return err
			}

			if envPath == "" {
				envPath = store.SidecarPath(out)
			}
			if err := store.SaveEnvelope(envPath, env); err != nil {
				return err
			}

			msg := "Encrypted " + args[0] + " to " + out + "\nEnvelope written to " + envPath
			if name != "" {
				id, err := svc.Store(cmd.Context(), name, service.TypeFile, env, map[string]string{service.MetaBlobPath: out})
				if err != nil {
					return err
				}
				msg += "\nStored envelope as " + id
			}
			s.FinalMSG = msg
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for the encrypted file (default: next to the input)")
	cmd.Flags().StringVar(&envPath, "envelope", "", "envelope file (default: <output>"+store.EnvelopeSuffix+")")
	cmd.Flags().StringVar(&name, "store", "", "also store the envelope as a record with this name")
	return cmd
}

func (a *app) fileDecryptCmd() *cobra.Command {
	var outDir, envPath, id string
	cmd := &cobra.Command{
		Use:   "decrypt PATH",
		Short: "Decrypt a file using an envelope from --envelope or --id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if envPath == "" && id == "" {
				return userError{msg: "an envelope is required: pass --envelope FILE or --id ID"}
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			env, err := a.loadEnvelope(cmd, svc, id, envPath)
			if err != nil {
				return err
			}

			pw, err := promptPassword("Enter password: ", passwordEnv)
			if err != nil {
				return err
			}
			defer zeroBytes(pw)

			s, progress, cleanup := a.startSpinner(cmd, "Decrypting "+args[0])
			defer cleanup()

			out, err := svc.DecryptFile(cmd.Context(), args[0], outDir, env, pw, progress)
			if err != nil {
				return err
			}
			s.FinalMSG = "Decrypted " + args[0] + " to " + out
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for the decrypted file (default: next to the input)")
	cmd.Flags().StringVar(&envPath, "envelope", "", "envelope file")
	cmd.Flags().StringVar(&id, "id", "", "use the envelope stored under this record ID")
	return cmd
}
