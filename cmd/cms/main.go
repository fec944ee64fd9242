package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const (
	envFileFlag = "env-file"
	addressFlag = "address"
)

// options are the flag values a command runs with
type options struct {
	envFile string
	address string
}

type action func(ctx context.Context, opts options) error

type actions struct {
	serve     action
	migrate   action
	bootstrap action
}

var defaultActions = actions{
	serve:     serveCommand,
	migrate:   migrateCommand,
	bootstrap: bootstrapCommand,
}

// cliFlags hold the pflag they were registered on, a command tree gets its own set
type cliFlags struct {
	root  map[string]cobraflags.Flag
	serve map[string]cobraflags.Flag
}

func newFlags() *cliFlags {
	return &cliFlags{
		root: map[string]cobraflags.Flag{
			envFileFlag: &cobraflags.StringFlag{
				Name:       envFileFlag,
				Value:      ".env",
				Usage:      "Dotenv file read before the environment, skipped when missing",
				Persistent: true,
			},
		},
		serve: map[string]cobraflags.Flag{
			addressFlag: &cobraflags.StringFlag{
				Name:  addressFlag,
				Value: "",
				Usage: "Listen address, overrides HTTP_ADDRESS",
			},
		},
	}
}

func (f *cliFlags) options(withServe bool) options {
	opts := options{envFile: f.root[envFileFlag].GetString()}
	if withServe {
		opts.address = f.serve[addressFlag].GetString()
	}
	return opts
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(defaultActions).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(run actions) *cobra.Command {
	flags := newFlags()

	root := &cobra.Command{
		Use:           "cms",
		Short:         "Content management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cobraflags.RegisterMap(root, flags.root)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate, create the first superuser and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run.serve(cmd.Context(), flags.options(true))
		},
	}
	cobraflags.RegisterMap(serveCmd, flags.serve)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run.migrate(cmd.Context(), flags.options(false))
		},
	}

	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the FIRST_SUPERUSER admin if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run.bootstrap(cmd.Context(), flags.options(false))
		},
	}

	root.AddCommand(serveCmd, migrateCmd, bootstrapCmd)
	return root
}
