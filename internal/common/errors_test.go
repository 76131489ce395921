package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeOK},
		{"wrapped connectivity", fmt.Errorf("get goods: %w", ErrConnectivity), CodeConnectivity},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), CodeTimeout},
		{"timeout", ErrTimeout, CodeTimeout},
		{"access denied", fmt.Errorf("check: %w", ErrAccessDenied), CodeAuth},
		{"unauthorized", ErrUnauthorized, CodeAuth},
		{"server", ErrServer, CodeServer},
		{"protocol", fmt.Errorf("page: %w", ErrProtocol), CodeProtocol},
		{"store", fmt.Errorf("merge goods: %w", ErrStore), CodeStore},
		{"active", ErrSyncActive, CodeSyncActive},
		{"unsupported", ErrUnsupported, CodeUnsupported},
		{"other", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(CodeConnectivity))
	assert.True(t, Retryable(CodeAuth))
	assert.False(t, Retryable(CodeProtocol))
	assert.False(t, Retryable(CodeStore))
	assert.False(t, Retryable(CodeSyncActive))
}
