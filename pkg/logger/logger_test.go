// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPackageLevelLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Get()
	Set(zap.New(core).Sugar())
	t.Cleanup(func() { Set(prev) })

	Debugw("debug message", "key", "value")
	Infof("info %s", "message")
	Warn("warn message")
	Error("error message")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "debug message", entries[0].Message)
	assert.Equal(t, "info message", entries[1].Message)
	assert.Equal(t, "warn message", entries[2].Message)
	assert.Equal(t, "error message", entries[3].Message)
}

func TestInitializeReplacesLogger(t *testing.T) {
	prev := Get()
	t.Cleanup(func() { Set(prev) })

	Initialize(true)
	require.NotNil(t, Get())

	Initialize(false)
	require.NotNil(t, Get())
}
