package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/config"
	"github.com/smallbiznis/decisionlog/internal/telemetry"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	provider, err := telemetry.New(context.Background(), config.Config{ServiceName: "decisionlog"}, zap.NewNop())
	require.NoError(t, err)
	require.False(t, provider.Enabled())
	require.NoError(t, provider.Shutdown(context.Background()))

	_, span := provider.Tracer().Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestNilProvider(t *testing.T) {
	var provider *telemetry.Provider
	require.False(t, provider.Enabled())
	require.NotNil(t, provider.Tracer())
	require.NoError(t, provider.Shutdown(context.Background()))
}
