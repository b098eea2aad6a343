// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureAttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "telepost-test", Version: "v0.0.1"})

	logger := WithComponent("ingest")
	logger.Info().Str(FieldEvent, "test.emit").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "telepost-test", entry["service"])
	assert.Equal(t, "v0.0.1", entry["version"])
	assert.Equal(t, "ingest", entry["component"])
	assert.Equal(t, "test.emit", entry["event"])
}

func TestWithOwnerAnnotatesUser(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "telepost-test"})

	logger := WithOwner("pipeline", 42)
	logger.Info().Msg("owned")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(42), entry["owner_id"])
	assert.Equal(t, "pipeline", entry["component"])
}
