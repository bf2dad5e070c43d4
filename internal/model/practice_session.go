package model

// PracticeSession 实习批次表 — 对应 practice_sessions
type PracticeSession struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"   json:"id"`
	InstitutionID int64  `gorm:"not null;index"             json:"institution_id"`
	Name          string `gorm:"type:varchar(100);not null" json:"name"`
	IsActive      bool   `gorm:"not null;default:false"     json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (PracticeSession) TableName() string { return "practice_sessions" }

// [自证通过] internal/model/practice_session.go
