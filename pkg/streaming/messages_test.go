package streaming

import (
	"encoding/json"
	"testing"

	"github.com/OCAP2/combatsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_DecodesPayloadLazily(t *testing.T) {
	raw := `{"type":"engagement","payload":{"attackerId":3,"defenderId":4,"result":"defeat"}}`

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, TypeEngagement, env.Type)

	var e core.Engagement
	require.NoError(t, json.Unmarshal(env.Payload, &e))
	assert.Equal(t, uint64(3), e.AttackerID)
	assert.Equal(t, core.Defeat, e.Result)
}

func TestEndRunPayload_Shape(t *testing.T) {
	data, err := json.Marshal(EndRunPayload{UUID: "u-1", Summary: core.Summary{Steps: 4, Terminated: true}})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "u-1", out["uuid"])
	summary := out["summary"].(map[string]any)
	assert.Equal(t, float64(4), summary["steps"])
	assert.Equal(t, true, summary["terminated"])
}
