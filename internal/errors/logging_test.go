package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger()
	require.NotNil(t, logger.Logger)
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok, "Logger should use JSON formatter")
}

func TestWrapLogger_Nil(t *testing.T) {
	assert.NotNil(t, WrapLogger(nil).Logger)
}

func TestLogger_LogRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantCode  string
	}{
		{"retryable logs warn", NewNetworkError("/send", errors.New("timeout")), "warning", "NETWORK"},
		{"non-retryable logs error", NewAPIError("/send", 400, "nope"), "error", "BACKEND_REJECTED"},
		{"plain error logs error", errors.New("boom"), "error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger()
			logger.SetOutput(&buf)

			logger.LogRetryableError(tt.err, "send failed", logrus.Fields{"chat_id": "c1"})

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "send failed", entry["msg"])
			assert.Equal(t, "c1", entry["chat_id"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, entry["error_code"])
			} else {
				assert.NotContains(t, entry, "error_code")
			}
		})
	}
}
