// Command chatctl talks to a running rag-chat server and exposes the offline
// helpers of the pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"

	// Global flags
	cfgFile   string
	serverURL string
	noColor   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "chatctl",
		Short: "rag-chat command line client",
		Long: `chatctl sends questions to a rag-chat server and runs the pipeline's
offline helpers locally.

Example usage:
  chatctl ask "Which cities do we visit on day 3?"
  chatctl route "What is the weather in Rome?"
  chatctl clean < page.txt`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cfgFile); err != nil {
				return err
			}
			serverURL = v.GetString("server")
			if v.GetBool("no_color") {
				color.NoColor = true
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .chatctl.yaml)")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "rag-chat server URL")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("no_color", root.PersistentFlags().Lookup("no-color"))

	root.AddCommand(newAskCmd())
	root.AddCommand(newRouteCmd())
	root.AddCommand(newCleanCmd())
	return root
}

// loadConfig reads .chatctl.yaml and CHATCTL_* environment variables.
func loadConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".chatctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/chatctl")
	}

	v.SetEnvPrefix("CHATCTL")
	v.AutomaticEnv()
	v.SetDefault("server", "http://localhost:8000")
	v.SetDefault("no_color", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}
