package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/infrastructure/registry"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/errors"
	"github.com/turtacn/limitgate/pkg/logger"
)

func windowRule(id string, priority int) models.LimitRule {
	return models.LimitRule{
		ID:         id,
		Dimensions: []string{constants.DimensionClientIP},
		Priority:   priority,
		Params: models.LimitParams{
			Capacity:   10,
			WindowSize: time.Minute,
			Algorithm:  constants.AlgorithmFixedWindow,
		},
	}
}

func TestStaticRegistry_OrdersByPriorityThenID(t *testing.T) {
	reg, err := registry.NewStaticRegistry([]models.LimitRule{
		windowRule("zebra", 2),
		windowRule("beta", 1),
		windowRule("alpha", 1),
	})
	require.NoError(t, err)

	rules := reg.ActiveRules()
	require.Len(t, rules, 3)
	assert.Equal(t, "alpha", rules[0].ID)
	assert.Equal(t, "beta", rules[1].ID)
	assert.Equal(t, "zebra", rules[2].ID)
}

func TestStaticRegistry_RejectsInvalidRule(t *testing.T) {
	bad := windowRule("bad", 1)
	bad.Params.Capacity = 0

	_, err := registry.NewStaticRegistry([]models.LimitRule{bad})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestFileRegistry_LoadsRuleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: per-ip
    dimensions: [client_ip]
    priority: 1
    params:
      capacity: 100
      window_size: 1m
      algorithm: fixed_window
  - id: per-subject
    dimensions: [subject]
    priority: 2
    params:
      rate: 5
      capacity: 10
      algorithm: token_bucket
`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, err := registry.NewFileRegistry(ctx, path, logger.NewNoopLogger())
	require.NoError(t, err)
	defer reg.Close()

	rules := reg.ActiveRules()
	require.Len(t, rules, 2)
	assert.Equal(t, "per-ip", rules[0].ID)
	assert.Equal(t, time.Minute, rules[0].Params.WindowSize)
	assert.Equal(t, constants.AlgorithmTokenBucket, rules[1].Params.Algorithm)
}

func TestFileRegistry_InitialLoadMustSucceed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: ""
    params:
      capacity: 1
      algorithm: token_bucket
`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := registry.NewFileRegistry(ctx, path, logger.NewNoopLogger())
	require.Error(t, err)
}
