// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the quilt-mcp command-line application.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quiltdata/quilt-mcp/pkg/logger"
	"github.com/quiltdata/quilt-mcp/pkg/mode"
	"github.com/quiltdata/quilt-mcp/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:               "quilt-mcp",
	DisableAutoGenTag: true,
	Short:             "Quilt MCP Gateway - Mode-driven gateway for Quilt catalog backends",
	Long: `Quilt MCP Gateway serves Quilt catalog operations through a single HTTP
surface whose behavior is derived from one deployment switch (MULTITENANT_MODE):

- Single-user mode uses the local quilt3 backend, accepts JWT or IAM
  credentials, and permits persistent local state.
- Multitenant mode uses the Platform backend, requires a JWT on every
  request, and isolates all request state by resolved tenant.

Every request is served from a freshly constructed, isolated request context;
the only shared state is the immutable mode configuration and the selected
backend handle.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize(viper.GetBool("debug"))
	},
}

// NewRootCmd creates a new root command for the quilt-mcp CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

// newServeCmd creates the serve command for starting the gateway
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Quilt MCP gateway",
		Long: `Start the gateway HTTP server.

The deployment mode is read from the environment at startup. If the selected
mode is missing required configuration, the full list of missing items is
printed and the process exits before binding any listener.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", "127.0.0.1:8080", "Address to listen on")
	if err := viper.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		logger.Errorf("Error binding address flag: %v", err)
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := mode.FromEnv()

	// All validation failures are reported together so operators can fix
	// the configuration in one pass. Nothing is bound before this check.
	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "invalid %s=%t configuration:\n", mode.EnvMultitenantMode, cfg.IsMultitenant())
		for i, err := range errs {
			fmt.Fprintf(os.Stderr, "  %d. %v\n", i+1, err)
		}
		return fmt.Errorf("mode configuration validation failed with %d error(s)", len(errs))
	}

	logger.Infow("deployment mode resolved",
		"multitenant", cfg.IsMultitenant(),
		"backend", string(cfg.Backend()),
		"tenant_mode", string(cfg.Tenant()),
		"requires_jwt", cfg.RequiresJWT(),
		"persistent_state", cfg.AllowsPersistentState(),
	)

	return server.Serve(cmd.Context(), viper.GetString("address"), cfg)
}

// getVersion returns the version string (will be set at build time)
func getVersion() string {
	// This will be replaced with actual version info using ldflags
	return "dev"
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display version information for quilt-mcp",
		Run: func(_ *cobra.Command, _ []string) {
			// Version information will be injected at build time
			logger.Infof("quilt-mcp version: %s", getVersion())
		},
	}
}

// newValidateCmd creates the validate command for checking the environment
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the deployment mode configuration",
		Long: `Validate the deployment mode configuration read from the environment.

This command resolves the mode exactly as serve would, prints the derived
dimensions, and reports every missing configuration item without starting
the server.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := mode.FromEnv()

			fmt.Printf("multitenant:      %t\n", cfg.IsMultitenant())
			fmt.Printf("backend:          %s\n", cfg.Backend())
			fmt.Printf("tenant mode:      %s\n", cfg.Tenant())
			fmt.Printf("requires jwt:     %t\n", cfg.RequiresJWT())
			fmt.Printf("persistent state: %t\n", cfg.AllowsPersistentState())

			if errs := cfg.Validate(); len(errs) > 0 {
				for i, err := range errs {
					fmt.Fprintf(os.Stderr, "  %d. %v\n", i+1, err)
				}
				return fmt.Errorf("configuration is invalid: %d missing item(s)", len(errs))
			}

			fmt.Println("configuration is valid")
			return nil
		},
	}
}
