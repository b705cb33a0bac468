package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

// The repository is exercised against in-memory SQLite; it only relies on
// portable GORM operations.
func newRepo(t *testing.T) *RuleRepoImpl {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	repo, err := NewRuleRepository(db, logger.NewNoopLogger())
	require.NoError(t, err)
	return repo
}

func sampleRule(id string) models.LimitRule {
	return models.LimitRule{
		ID:         id,
		Dimensions: []string{constants.DimensionClientIP, constants.DimensionPath},
		Priority:   3,
		Params: models.LimitParams{
			Capacity:   50,
			WindowSize: 30 * time.Second,
			Algorithm:  constants.AlgorithmSlidingWindow,
		},
	}
}

func TestRuleRepo_SaveAndListRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleRule("per-ip-path")))

	rules, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	got := rules[0]
	assert.Equal(t, "per-ip-path", got.ID)
	assert.Equal(t, []string{constants.DimensionClientIP, constants.DimensionPath}, got.Dimensions)
	assert.Equal(t, int64(50), got.Params.Capacity)
	assert.Equal(t, 30*time.Second, got.Params.WindowSize)
	assert.Equal(t, constants.AlgorithmSlidingWindow, got.Params.Algorithm)
	assert.Equal(t, 3, got.Priority)
}

func TestRuleRepo_SaveUpsertsByID(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	rule := sampleRule("mutable")
	require.NoError(t, repo.Save(ctx, rule))

	rule.Params.Capacity = 200
	rule.Priority = 1
	require.NoError(t, repo.Save(ctx, rule))

	rules, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(200), rules[0].Params.Capacity)
	assert.Equal(t, 1, rules[0].Priority)
}

func TestRuleRepo_SaveRejectsInvalidRule(t *testing.T) {
	repo := newRepo(t)

	bad := sampleRule("bad")
	bad.Params.Capacity = 0
	assert.Error(t, repo.Save(context.Background(), bad))
}

func TestRuleRepo_Delete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleRule("doomed")))
	require.NoError(t, repo.Delete(ctx, "doomed"))
	require.NoError(t, repo.Delete(ctx, "doomed"), "deleting an absent rule is not an error")

	rules, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
