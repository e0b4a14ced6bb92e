package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"malformed input", NewMalformedInputError("A", "A-vm", "missing Security"), ErrCodeMalformedInput},
		{"wrapped model error", fmt.Errorf("rank: %w", NewModelInferenceError("ranker", "A", "", stderrors.New("boom"))), ErrCodeModelInferenceFailed},
		{"plain error", stderrors.New("plain"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
			assert.True(t, HasCode(tt.err, tt.want))
		})
	}

	assert.False(t, HasCode(nil, ErrCodeInternal))
}

func TestStandardError_CarriesIdentity(t *testing.T) {
	cause := stderrors.New("predict failed")
	err := NewModelInferenceError("recommender", "Site-1", "Site-1-vm", cause)

	assert.Equal(t, "Site-1", err.SiteName())
	assert.Equal(t, "Site-1-vm", err.ResourceName())
	assert.False(t, err.Retryable)
	assert.True(t, stderrors.Is(err, cause))

	siteLevel := NewMalformedInputError("Site-2", "", "empty SiteName")
	assert.Equal(t, "", siteLevel.ResourceName())
	assert.Equal(t, 0, err.BatchSize())
}

func TestNewBatchInferenceError(t *testing.T) {
	cause := stderrors.New("booster not loaded")
	err := NewBatchInferenceError("ranker", "Site-1", "", 4, cause)

	assert.Equal(t, ErrCodeModelInferenceFailed, err.Code)
	assert.Equal(t, "Site-1", err.SiteName())
	assert.Equal(t, 4, err.BatchSize())
	assert.True(t, stderrors.Is(err, cause))

	vars := ConvertToBPMNError(err).ErrorVariables
	assert.Equal(t, true, vars["batch"])
	assert.Equal(t, 4, vars["batchSize"])
	assert.Equal(t, "Site-1", vars["siteName"])
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("sink failures keep their retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewSinkWriteFailedError("redis", stderrors.New("dial tcp")))
		assert.Equal(t, "SINK_WRITE_FAILED", bpmn.Code)
		assert.True(t, bpmn.Retryable)
		assert.Equal(t, 3, bpmn.Retries)
	})

	t.Run("input errors are not retried", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewMalformedInputError("A", "r1", "missing Update"))
		assert.Equal(t, 0, bpmn.Retries)

		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "A", vars["siteName"])
		assert.Equal(t, "r1", vars["resourceName"])
		assert.Equal(t, "MALFORMED_INPUT", vars["originalErrorCode"])
	})
}

func TestNormalize(t *testing.T) {
	plain := stderrors.New("unexpected")
	stdErr := Normalize(plain)
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.True(t, stderrors.Is(stdErr, plain))

	typed := NewConfigurationError("weights sum to 0.9")
	assert.Same(t, typed, Normalize(fmt.Errorf("wrap: %w", typed)))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeMalformedInput))
	assert.Equal(t, "MODEL", GetErrorCategory(ErrCodeModelInferenceFailed))
	assert.Equal(t, "CONFIGURATION", GetErrorCategory(ErrCodeConfigurationInvalid))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeSinkWriteFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeSourceLoadFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeModelInferenceFailed))
}
