package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"sitesight/internal/common/config"
	"sitesight/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		RetryConfig: &RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestExecuteWithRetry_RecoversFromTransientErrors(t *testing.T) {
	calls := 0
	result, err := fastClient(3).ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, stderrors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "topology")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentErrors(t *testing.T) {
	calls := 0
	_, err := fastClient(3).ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, stderrors.New("rpc error: code = NotFound desc = job not found")
	}, "complete")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	calls := 0
	_, err := fastClient(2).ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, stderrors.New("context deadline exceeded")
	}, "topology")

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, errors.ErrCodeTimeout, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want errors.ErrorCode
	}{
		{"connection refused", errors.ErrCodeExternalService},
		{"deadline exceeded", errors.ErrCodeTimeout},
		{"process not found", errors.ErrCodeResourceNotFound},
		{"permission denied", errors.ErrCodeAuthentication},
		{"something odd", errors.ErrCodeExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.CodeOf(mapZeebeError(stderrors.New(tt.msg), "op", 0)))
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
	assert.Same(t, DefaultRetryConfig, cfg.RetryConfig)
}

func TestNewClientWithConfig_RequiresAddress(t *testing.T) {
	_, err := NewClientWithConfig(context.Background(), &ClientConfig{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigurationInvalid, errors.CodeOf(err))
}
