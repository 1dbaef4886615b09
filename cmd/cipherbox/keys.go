package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/cipherbox/internal/service"
)

func (a *app) keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage key pairs and wrap payloads for public keys",
	}
	cmd.AddCommand(
		a.keysGenerateCmd(),
		a.keysExportPublicCmd(),
		a.keysEncryptCmd(),
		a.keysDecryptCmd(),
	)
	return cmd
}

func (a *app) keysGenerateCmd() *cobra.Command {
	var (
		name string
		bits int
		kem  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a key pair and store the private key under a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return userError{msg: "missing required flag: --name"}
			}
			if kem && cmd.Flags().Changed("bits") {
				return userError{msg: "--bits applies to rsa keys only"}
			}

			pw, err := promptNewPassword("Enter password for the private key: ", passwordEnv)
			if err != nil {
				return err
			}
			defer zeroBytes(pw)

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			s, _, cleanup := a.startSpinner(cmd, "Generating key pair "+name)
			defer cleanup()

			var info *service.KeyInfo
			if kem {
				info, err = svc.GenerateKEMKeyPair(cmd.Context(), name, pw)
			} else {
				info, err = svc.GenerateKeyPair(cmd.Context(), name, bits, pw)
			}
			if err != nil {
				return err
			}
			s.FinalMSG = fmt.Sprintf("Stored key pair %q as %s\n%s", info.Name, info.ID, info.PublicKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "record name for the key pair")
	cmd.Flags().IntVar(&bits, "bits", 0, "rsa modulus size: 2048, 3072 or 4096 (default 3072)")
	cmd.Flags().BoolVar(&kem, "kem", false, "generate an ML-KEM-768 key pair instead of rsa")
	return cmd
}

func (a *app) keysExportPublicCmd() *cobra.Command {
	var ssh bool
	cmd := &cobra.Command{
		Use:   "export-public ID",
		Short: "Print the public key of a stored key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			pub, err := svc.PublicKey(cmd.Context(), args[0], ssh)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(pub))
			return nil
		},
	}
	cmd.Flags().BoolVar(&ssh, "ssh", false, "print an authorized_keys line instead of PEM")
	return cmd
}

func (a *app) keysEncryptCmd() *cobra.Command {
	var in, to, id string
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Wrap a payload from stdin or --in for a public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (to == "") == (id == "") {
				return userError{msg: "pass exactly one of --to FILE or --id ID"}
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			var pub string
			if to != "" {
				b, err := readInput(cmd, to)
				if err != nil {
					return err
				}
				pub = string(b)
			} else {
				pub, err = svc.PublicKey(cmd.Context(), id, false)
				if err != nil {
					return err
				}
			}

			payload, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			defer zeroBytes(payload)

			wrapped, err := svc.Wrap(payload, pub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wrapped)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the payload from this file instead of stdin")
	cmd.Flags().StringVar(&to, "to", "", "public key file (PEM, authorized_keys line or ML-KEM base64)")
	cmd.Flags().StringVar(&id, "id", "", "use the public key of this stored key pair")
	return cmd
}

func (a *app) keysDecryptCmd() *cobra.Command {
	var in, id string
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Unwrap a payload with a stored private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return userError{msg: "missing required flag: --id"}
			}

			wrapped, err := readInput(cmd, in)
			if err != nil {
				return err
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			pw, err := promptPassword("Enter password for the private key: ", passwordEnv)
			if err != nil {
				return err
			}
			defer zeroBytes(pw)

			payload, err := svc.Unwrap(cmd.Context(), id, pw, string(wrapped))
			if err != nil {
				return err
			}
			defer zeroBytes(payload)

			_, err = cmd.OutOrStdout().Write(payload)
			return err
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "read the wrapped payload from this file instead of stdin")
	cmd.Flags().StringVar(&id, "id", "", "stored key pair to decrypt with")
	return cmd
}
