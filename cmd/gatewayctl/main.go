// Command gatewayctl runs gateway verbs and maintenance tasks against the
// same configuration as the API server.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"multigateway-api/app"
	"multigateway-api/config"
	"multigateway-api/logging"
)

var Version = "dev"

// appLoader builds the shared services. Tests swap it for an in-memory app.
type appLoader func() (*app.App, error)

func loadApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Logs go to stderr; keep them quiet so stdout stays parseable.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger, err := logging.New(level, cfg.Log.Environment)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}

func main() {
	if err := newRootCmd(loadApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(load appLoader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gatewayctl",
		Short:         "gatewayctl - run payment gateway operations from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	for _, cmd := range verbCmds(load) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(gatewaysCmd(load))
	rootCmd.AddCommand(tokenCmd(load))
	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(jobsCmd(load))

	return rootCmd
}

// withApp runs fn with a loaded app and closes it afterwards.
func withApp(load appLoader, fn func(a *app.App) error) error {
	a, err := load()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
