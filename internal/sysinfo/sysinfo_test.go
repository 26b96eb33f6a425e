package sysinfo

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitDepthFromArch(t *testing.T) {
	assert.Equal(t, BitDepth64, bitDepthFromArch("x86_64"))
	assert.Equal(t, BitDepth64, bitDepthFromArch("aarch64"))
	assert.Equal(t, BitDepth64, bitDepthFromArch("AMD64"))
	assert.Equal(t, BitDepth32, bitDepthFromArch("i686"))
	assert.Equal(t, BitDepth32, bitDepthFromArch("armv7l"))
	assert.Equal(t, BitDepthUnknown, bitDepthFromArch(""))
	assert.Equal(t, BitDepthUnknown, bitDepthFromArch("mystery"))
}

func TestBitDepthRendersAsText(t *testing.T) {
	data, err := json.Marshal(Report{Hostname: "box", OS: "linux", BitDepth: BitDepth64})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bit_depth":"64-bit"`)
}

func TestCollectReportsRunningHost(t *testing.T) {
	report, err := Collect(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.OS)
	assert.NotEmpty(t, report.Hostname)
}
