package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not ready", dserrors.ErrNotReady, ErrCodeIndexNotReady},
		{"wrapped not ready", fmt.Errorf("sparse: %w", dserrors.ErrNotReady), ErrCodeIndexNotReady},
		{"corrupt index", dserrors.New(dserrors.ErrCodeCorruptIndex, "bad version", nil), ErrCodeIndexNotReady},
		{"locked", dserrors.New(dserrors.ErrCodeIndexLocked, "busy", nil), ErrCodeIndexBusy},
		{"provider", dserrors.ProviderError("ollama", errors.New("refused")), ErrCodeProviderFailed},
		{"empty query", dserrors.New(dserrors.ErrCodeQueryEmpty, "query must not be empty", nil), ErrCodeInvalidParams},
		{"network", dserrors.New(dserrors.ErrCodeNetworkTimeout, "slow", nil), ErrCodeTimeout},
		{"internal", dserrors.InternalError("boom", nil), ErrCodeInternalError},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"plain", errors.New("unexpected"), ErrCodeInternalError},
		{"already mapped", NewInvalidParamsError("bad"), ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	got := MapError(dserrors.ErrNotReady)

	assert.Contains(t, got.Message, "index not ready")
	assert.Contains(t, got.Message, "docsift index")
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "query parameter is required"}

	assert.Equal(t, "MCP error -32602: query parameter is required", err.Error())
}
