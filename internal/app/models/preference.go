package models

import "time"

// UserPreference 用户偏好设置
type UserPreference struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement;comment:主键" json:"-"`
	UserID        string    `gorm:"size:100;not null;uniqueIndex;comment:用户ID" json:"userId"`
	Language      string    `gorm:"size:20;default:null;comment:界面语言" json:"language"`
	CitationStyle string    `gorm:"size:50;default:null;comment:引用样式" json:"citation_style"`
	ResponseSpeed string    `gorm:"size:20;default:null;comment:输出速度" json:"response_speed"`
	Model         string    `gorm:"size:100;default:null;comment:模型名称" json:"model"`
	CreatedAt     time.Time `gorm:"type:datetime;not null;default:CURRENT_TIMESTAMP;comment:记录创建时间" json:"-"`
	UpdatedAt     time.Time `gorm:"type:datetime;not null;default:CURRENT_TIMESTAMP;comment:最后更新时间" json:"-"`
}

// TableName 指定表名
func (UserPreference) TableName() string {
	return "user_preference"
}

// PreferenceRequest 保存偏好请求
type PreferenceRequest struct {
	UserID      string         `json:"userId"`
	Preferences UserPreference `json:"preferences"`
}
