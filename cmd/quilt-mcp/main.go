// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the Quilt MCP gateway.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/quiltdata/quilt-mcp/cmd/quilt-mcp/app"
	"github.com/quiltdata/quilt-mcp/pkg/logger"
)

func main() {
	// Create a context that will be canceled on signal
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("error executing command: %v", err)
		os.Exit(1)
	}
}
