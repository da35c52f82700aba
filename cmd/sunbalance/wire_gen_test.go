package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeRuntimeFailsBeforeOpeningStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "store.db")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("SUNBALANCE_STORAGE_BACKEND", "sqlite")
	t.Setenv("SUNBALANCE_STORAGE_PATH", path)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://")

	rt, err := initializeRuntime(context.Background())
	require.Error(t, err)
	require.Nil(t, rt)
	require.NoFileExists(t, path)
	require.NoDirExists(t, filepath.Dir(path))
}
