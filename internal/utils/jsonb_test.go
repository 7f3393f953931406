package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_ValueAndScan(t *testing.T) {
	m := JSONMap{"error": "boom", "details": map[string]any{"status": float64(400)}}

	v, err := m.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan(v))
	assert.Equal(t, "boom", out["error"])
	assert.Equal(t, float64(400), out["details"].(map[string]any)["status"])
}

func TestJSONMap_NilRoundTrip(t *testing.T) {
	var m JSONMap
	v, err := m.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var out JSONMap
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
}

func TestJSONMap_ScanRejectsUnknownType(t *testing.T) {
	var out JSONMap
	assert.Error(t, out.Scan(42))
}

func TestToJSONMap(t *testing.T) {
	type payload struct {
		Summary string `json:"summary"`
		Count   int    `json:"count"`
	}
	m, err := ToJSONMap(payload{Summary: "ok", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, "ok", m["summary"])
	assert.Equal(t, float64(2), m["count"])
}
