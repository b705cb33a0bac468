package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/pkg/errors"
)

func TestKeyBuilder_DeterministicAcrossDimensionOrder(t *testing.T) {
	kb := NewKeyBuilder("limitgate")

	ruleA := models.LimitRule{ID: "per-user-path", Dimensions: []string{"subject", "path"}}
	ruleB := models.LimitRule{ID: "per-user-path", Dimensions: []string{"path", "subject"}}
	dims := map[string]string{
		"subject": "user-42",
		"path":    "/v1/orders",
		"tenant":  "acme", // extra dimensions are ignored
	}

	keyA, err := kb.Build(ruleA, dims)
	require.NoError(t, err)
	keyB, err := kb.Build(ruleB, dims)
	require.NoError(t, err)

	assert.Equal(t, keyA, keyB)
	assert.Contains(t, keyA, "per-user-path")
	assert.Contains(t, keyA, "user-42")
}

func TestKeyBuilder_MissingDimensionFails(t *testing.T) {
	kb := NewKeyBuilder("limitgate")
	rule := models.LimitRule{ID: "per-tenant", Dimensions: []string{"tenant"}}

	_, err := kb.Build(rule, map[string]string{"subject": "user-42"})
	require.Error(t, err)
	assert.True(t, errors.IsKeyConstruction(err))

	// An empty value counts as absent, never as a placeholder.
	_, err = kb.Build(rule, map[string]string{"tenant": ""})
	require.Error(t, err)
	assert.True(t, errors.IsKeyConstruction(err))
}

func TestKeyBuilder_GlobalRuleNeedsNoDimensions(t *testing.T) {
	kb := NewKeyBuilder("limitgate")
	rule := models.LimitRule{ID: "global"}

	key, err := kb.Build(rule, nil)
	require.NoError(t, err)
	assert.Contains(t, key, "global")
}

func TestKeyBuilder_DistinctValuesDistinctKeys(t *testing.T) {
	kb := NewKeyBuilder("limitgate")
	rule := models.LimitRule{ID: "per-ip", Dimensions: []string{"client_ip"}}

	keyA, err := kb.Build(rule, map[string]string{"client_ip": "10.0.0.1"})
	require.NoError(t, err)
	keyB, err := kb.Build(rule, map[string]string{"client_ip": "10.0.0.2"})
	require.NoError(t, err)

	assert.NotEqual(t, keyA, keyB)
}
