package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/internal/service"
	"github.com/Hussein-Mazeh/cipherbox/store"
)

func (a *app) textCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Encrypt and decrypt text under a password",
	}
	cmd.AddCommand(a.textEncryptCmd(), a.textDecryptCmd())
	return cmd
}

// readInput returns the contents of path, or stdin when path is empty.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

func (a *app) textEncryptCmd() *cobra.Command {
	var in, out, name string
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt text from stdin or --in into an envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			defer zeroBytes(plaintext)

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

			env, err := svc.EncryptText(plaintext, pw)
			if err != nil {
				return err
			}

			if name != "" {
				id, err := svc.Store(cmd.Context(), name, service.TypeText, env, nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			if out != "" {
				if err := store.SaveEnvelope(out, env); err != nil {
					return err
				}
				a.log.Infof("wrote envelope to %s", out)
			}
			if name == "" && out == "" {
				return printEnvelope(cmd, env)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read plaintext from this file instead of stdin")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the envelope to this file")
	cmd.Flags().StringVar(&name, "store", "", "store the envelope as a record with this name")
	return cmd
}

func printEnvelope(cmd *cobra.Command, env *envelope.Envelope) error {
	b, err := env.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// loadEnvelope resolves an envelope from a record ID, a file, or stdin.
func (a *app) loadEnvelope(cmd *cobra.Command, svc *service.Service, id, path string) (*envelope.Envelope, error) {
	switch {
	case id != "" && path != "":
		return nil, userError{msg: "use either --id or --envelope, not both"}
	case id != "":
		return svc.Envelope(cmd.Context(), id)
	case path != "":
		return store.LoadEnvelope(path)
	}
	b, err := readInput(cmd, "")
	if err != nil {
		return nil, err
	}
	return envelope.Parse(b)
}

func (a *app) textDecryptCmd() *cobra.Command {
	var id, envPath string
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt an envelope from --id, --envelope or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			plaintext, err := svc.DecryptText(env, pw)
			if err != nil {
				return err
			}
			defer zeroBytes(plaintext)

			_, err = cmd.OutOrStdout().Write(plaintext)
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "decrypt the stored record with this ID")
	cmd.Flags().StringVar(&envPath, "envelope", "", "read the envelope from this file")
	return cmd
}
