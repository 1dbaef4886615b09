package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/cipherbox/internal/config"
	"github.com/Hussein-Mazeh/cipherbox/internal/logging"
	"github.com/Hussein-Mazeh/cipherbox/internal/service"
)

const cliVersion = "0.2.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	handleError(err)
}

// app carries the global flags and the logger shared by every command.
type app struct {
	verbose    bool
	debug      bool
	configPath string
	log        logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cipherbox",
		Short: "Password-based encryption for text, files and keys",
		Long: `cipherbox encrypts text and files under a password, manages asymmetric
key pairs whose private halves are stored password-wrapped, and keeps the
resulting envelopes in a local SQLite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "enable debug output")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default <user config dir>/cipherbox/config.toml)")

	root.AddCommand(
		a.versionCmd(),
		a.initCmd(),
		a.textCmd(),
		a.fileCmd(),
		a.keysCmd(),
		a.recordsCmd(),
		a.passwordCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.log = logging.Logger{
		Verbose: a.verbose,
		Debug:   a.debug,
		Out:     cmd.ErrOrStderr(),
		Err:     cmd.ErrOrStderr(),
	}
	if a.configPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		a.configPath = path
	}
	a.configPath = filepath.Clean(a.configPath)
	a.log.Debugf("using config %s (verbose=%t, debug=%t)", a.configPath, a.verbose, a.debug)
	return nil
}

// service loads the config and opens the record database. The caller must
// Close the service.
func (a *app) service(ctx context.Context) (*service.Service, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	return service.New(ctx, cfg, a.log)
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cipherbox version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cliVersion)
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config and create the record database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return userError{msg: "config already exists at " + a.configPath + " (use --force to overwrite)"}
			}
			if err := config.Save(a.configPath, config.Default()); err != nil {
				return err
			}
			a.log.Infof("wrote %s", a.configPath)

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Initialised cipherbox at %s\n", filepath.Dir(a.configPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
