package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("STREAM_COVERAGE_DAYS", "")
	t.Setenv("TICK_INTERVAL", "")

	cfg := New()

	assert.Equal(t, "America/Los_Angeles", cfg.EngineCfg.ReportingTimezone)
	assert.Equal(t, 2, cfg.EngineCfg.StreamCoverageDays)
	assert.Equal(t, 2, cfg.EngineCfg.ReportSettlementLagDays)
	assert.Equal(t, time.Minute, cfg.EngineCfg.TickInterval)
	assert.Equal(t, 0.02, cfg.EngineCfg.BidFloor)
	assert.Equal(t, 100, cfg.EngineCfg.LookupChunkSize)
	assert.Equal(t, "https://advertising-api.amazon.com", cfg.AdsAPICfg.Endpoint)
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("STREAM_COVERAGE_DAYS", "3")
	t.Setenv("TICK_INTERVAL", "30s")
	t.Setenv("BID_FLOOR", "0.10")
	t.Setenv("REDIS_ENABLED", "true")

	cfg := New()

	assert.Equal(t, 3, cfg.EngineCfg.StreamCoverageDays)
	assert.Equal(t, 30*time.Second, cfg.EngineCfg.TickInterval)
	assert.Equal(t, 0.10, cfg.EngineCfg.BidFloor)
	assert.True(t, cfg.RedisCfg.Enabled)
}

func TestNew_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("STREAM_COVERAGE_DAYS", "two")
	t.Setenv("TICK_INTERVAL", "soon")

	cfg := New()

	assert.Equal(t, 2, cfg.EngineCfg.StreamCoverageDays)
	assert.Equal(t, time.Minute, cfg.EngineCfg.TickInterval)
}

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		offset  string
		seconds int
		wantErr bool
	}{
		{"+00:00", 0, false},
		{"", 0, false},
		{"+05:30", 5*3600 + 30*60, false},
		{"-08:00", -8 * 3600, false},
		{"8 hours", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.offset, func(t *testing.T) {
			loc, err := ParseUTCOffset(tt.offset)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, secs := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
			assert.Equal(t, tt.seconds, secs)
		})
	}
}

func TestReportingLocation_Invalid(t *testing.T) {
	_, err := EngineConfig{ReportingTimezone: "Mars/Olympus"}.ReportingLocation()
	assert.Error(t, err)
}
