package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"evidence-agent/internal/app/models"
)

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get 获取用户偏好，不存在时返回 nil
func (r *PreferenceRepository) Get(userID string) (*models.UserPreference, error) {
	var pref models.UserPreference
	err := r.db.Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Upsert 保存用户偏好（支持部分字段更新）
func (r *PreferenceRepository) Upsert(pref *models.UserPreference) error {
	// 只更新有值的字段，避免覆盖原有数据
	updates := PreferenceUpdates(pref)
	updates["updated_at"] = time.Now()

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(pref).Error
}

// PreferenceUpdates 非空字段组成的更新集合
func PreferenceUpdates(pref *models.UserPreference) map[string]interface{} {
	updates := make(map[string]interface{})
	if pref.Language != "" {
		updates["language"] = pref.Language
	}
	if pref.CitationStyle != "" {
		updates["citation_style"] = pref.CitationStyle
	}
	if pref.ResponseSpeed != "" {
		updates["response_speed"] = pref.ResponseSpeed
	}
	if pref.Model != "" {
		updates["model"] = pref.Model
	}
	return updates
}
