package protocol

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expectError string
		expectField string
	}{
		{
			name:    "valid request",
			payload: `{"id":"r1","tool":"navigate","args":{"url":"https://example.com"}}`,
		},
		{
			name:    "valid request with session and deadline",
			payload: `{"id":"r2","tool":"click","args":{"selector":"#go"},"session_id":"s1","deadline_ms":5000}`,
		},
		{
			name:        "malformed json",
			payload:     `{"id":"r3",`,
			expectError: "malformed request payload",
		},
		{
			name:        "missing id",
			payload:     `{"tool":"navigate"}`,
			expectField: "id",
		},
		{
			name:        "missing tool",
			payload:     `{"id":"r4"}`,
			expectField: "tool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.payload))

			if tt.expectError == "" && tt.expectField == "" {
				require.NoError(t, err)
				assert.NotEmpty(t, req.ID)
				assert.NotEmpty(t, req.Tool)
				return
			}

			require.Error(t, err)
			assert.Equal(t, KindInvalidRequest, ClassifyError(err))
			if tt.expectError != "" {
				assert.Contains(t, err.Error(), tt.expectError)
			}
			if tt.expectField != "" {
				resp := NewErrorResponse("x", err)
				assert.Equal(t, tt.expectField, resp.Error.Field)
			}
		})
	}
}

func TestDecodeRequest_RecoversIDOnValidationFailure(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"id":"r9"}`))
	require.Error(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "r9", req.ID)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{fmt.Errorf("wrapped: %w", ErrUnknownTool), KindUnknownTool},
		{fmt.Errorf("wrapped: %w", ErrPoolExhausted), KindPoolExhausted},
		{fmt.Errorf("wrapped: %w", ErrOperationTimeout), KindOperationTimeout},
		{fmt.Errorf("wrapped: %w", ErrEngineFault), KindEngineFault},
		{fmt.Errorf("wrapped: %w", ErrTransportFault), KindTransportFault},
		{&FieldError{Field: "url", Message: "required"}, KindInvalidRequest},
		{fmt.Errorf("selector matched nothing"), KindToolFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, ClassifyError(tt.err), "error: %v", tt.err)
	}
}

func TestResponseEncoding_ResultAndErrorExclusive(t *testing.T) {
	success := NewResultResponse("r1", map[string]interface{}{"title": "Assessor Search"})
	data, err := EncodeResponse(success)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "r1", decoded["id"])
	assert.Contains(t, decoded, "result")
	assert.NotContains(t, decoded, "error")

	failure := NewErrorResponse("r2", fmt.Errorf("navigation failed: %w", ErrEngineFault))
	data, err = EncodeResponse(failure)
	require.NoError(t, err)

	decoded = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "r2", decoded["id"])
	assert.NotContains(t, decoded, "result")

	errObj := decoded["error"].(map[string]interface{})
	assert.Equal(t, string(KindEngineFault), errObj["kind"])
}

func TestNewErrorResponse_FieldPropagation(t *testing.T) {
	err := fmt.Errorf("validating args: %w", &FieldError{Field: "parcel_id", Message: "required field is missing"})
	resp := NewErrorResponse("r9", err)

	require.NotNil(t, resp.Error)
	assert.Equal(t, KindInvalidRequest, resp.Error.Kind)
	assert.Equal(t, "parcel_id", resp.Error.Field)
}
