package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun_ZeroValueIsSafe(t *testing.T) {
	var o Observability
	assert.NotPanics(t, func() {
		o.RecordRun(context.Background(), "success", 3, 10*time.Millisecond)
		o.Shutdown()
	})
}

func TestEnableTracing_NoEndpoint(t *testing.T) {
	o := &Observability{}
	require.NoError(t, o.EnableTracing("sitesight", ""))
	assert.Nil(t, o.tracerProvider)

	_, span := Tracer("test").Start(context.Background(), "noop")
	span.End()
}

func TestEnableTracing_InstallsProvider(t *testing.T) {
	o := &Observability{}
	require.NoError(t, o.EnableTracing("sitesight", "http://127.0.0.1:14268/api/traces"))
	assert.NotNil(t, o.tracerProvider)
	o.Shutdown()
}
