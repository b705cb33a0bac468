package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/repository"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

var _ repository.RuleRepository = (*RuleRepoImpl)(nil)

// ruleRecord is the relational shape of a limit rule. Dimensions are stored as
// a JSON array so the schema survives new dimension names without migration.
type ruleRecord struct {
	ID           string `gorm:"primaryKey;size:128"`
	Dimensions   string `gorm:"type:text;not null"`
	Algorithm    string `gorm:"size:32;not null"`
	Rate         float64
	Capacity     int64
	WindowSizeMS int64
	Priority     int
	Enabled      bool `gorm:"not null;default:true;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ruleRecord) TableName() string {
	return "limit_rules"
}

// RuleRepoImpl implements RuleRepository on GORM.
type RuleRepoImpl struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewRuleRepository creates the repository and migrates its table.
func NewRuleRepository(db *gorm.DB, log logger.Logger) (*RuleRepoImpl, error) {
	if err := db.AutoMigrate(&ruleRecord{}); err != nil {
		return nil, fmt.Errorf("migrate limit_rules: %w", err)
	}
	return &RuleRepoImpl{
		db:     db,
		logger: log.WithComponent("rule_repository"),
	}, nil
}

// ListActive returns every enabled rule. Records that fail to decode are
// skipped with a log entry rather than poisoning the whole load.
func (r *RuleRepoImpl) ListActive(ctx context.Context) ([]models.LimitRule, error) {
	var records []ruleRecord
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	rules := make([]models.LimitRule, 0, len(records))
	for _, rec := range records {
		rule, err := rec.toModel()
		if err != nil {
			r.logger.Error(ctx, "skipping undecodable rule record", err, logger.String("rule_id", rec.ID))
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Save upserts a rule by ID.
func (r *RuleRepoImpl) Save(ctx context.Context, rule models.LimitRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	dims, err := json.Marshal(rule.Dimensions)
	if err != nil {
		return fmt.Errorf("encode dimensions: %w", err)
	}

	rec := ruleRecord{
		ID:           rule.ID,
		Dimensions:   string(dims),
		Algorithm:    string(rule.Params.Algorithm),
		Rate:         rule.Params.Rate,
		Capacity:     rule.Params.Capacity,
		WindowSizeMS: rule.Params.WindowSize.Milliseconds(),
		Priority:     rule.Priority,
		Enabled:      true,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"dimensions", "algorithm", "rate", "capacity", "window_size_ms", "priority", "enabled", "updated_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save rule %s: %w", rule.ID, err)
	}

	r.logger.Info(ctx, "rule saved", logger.String("rule_id", rule.ID))
	return nil
}

// Delete removes a rule by ID. Deleting an absent rule is not an error.
func (r *RuleRepoImpl) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&ruleRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return nil
}

func (rec ruleRecord) toModel() (models.LimitRule, error) {
	var dims []string
	if err := json.Unmarshal([]byte(rec.Dimensions), &dims); err != nil {
		return models.LimitRule{}, fmt.Errorf("decode dimensions of rule %s: %w", rec.ID, err)
	}
	return models.LimitRule{
		ID:         rec.ID,
		Dimensions: dims,
		Params: models.LimitParams{
			Rate:       rec.Rate,
			Capacity:   rec.Capacity,
			WindowSize: time.Duration(rec.WindowSizeMS) * time.Millisecond,
			Algorithm:  constants.AlgorithmType(rec.Algorithm),
		},
		Priority: rec.Priority,
	}, nil
}
