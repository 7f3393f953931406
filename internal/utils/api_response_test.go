package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListResponse_SetsPageMeta(t *testing.T) {
	resp := CreateListResponse([]string{"a", "b"}, 2, 50)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))

	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["count"])
	assert.Equal(t, float64(50), meta["limit"])
	assert.Contains(t, meta, "timestamp")
}

func TestCreateSuccessResponse_OmitsListMeta(t *testing.T) {
	raw, err := json.Marshal(CreateSuccessResponse("ok"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "count")
	assert.NotContains(t, string(raw), "limit")
}

func TestCreateUpstreamErrorResponse(t *testing.T) {
	resp := CreateUpstreamErrorResponse("RESET_FAILED", "restore failed", map[string]any{"status": 429})
	assert.False(t, resp.Success)
	assert.Equal(t, "RESET_FAILED", resp.Error.Code)
	assert.Equal(t, map[string]any{"status": 429}, resp.Error.Details)

	raw, err := json.Marshal(CreateErrorResponse("NOT_FOUND", "Rule not found"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "details")
}
