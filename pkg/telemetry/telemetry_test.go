package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresEndpoint(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, ServiceName: "sunbalance"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestExporterOptions(t *testing.T) {
	opts, err := exporterOptions("http://collector:4318/v1/traces")
	require.NoError(t, err)
	require.Len(t, opts, 3)

	opts, err = exporterOptions("collector:4318")
	require.NoError(t, err)
	require.Len(t, opts, 2)

	_, err = exporterOptions("http:///missing-host")
	require.Error(t, err)
}
