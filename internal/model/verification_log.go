package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ── PostgreSQL JSONB 自定义类型 ──

// DeviceInfo 客户端上报的设备原始信息，存储为 JSONB
// 可整体缺省；实现 GORM Scanner/Valuer 接口
type DeviceInfo struct {
	DeviceID string `json:"device_id,omitempty"`
	Model    string `json:"model,omitempty"`
	OS       string `json:"os,omitempty"`
	Browser  string `json:"browser,omitempty"`
}

// Scan 将 JSONB 字节解析为 DeviceInfo
func (d *DeviceInfo) Scan(src interface{}) error {
	if src == nil {
		*d = DeviceInfo{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("DeviceInfo.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, d)
}

// Value 将 DeviceInfo 序列化为 JSONB 字节
func (d DeviceInfo) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// VerificationLog 定位核验日志表 — 对应 verification_logs
// 只增不改：一行即为对应派驻"到场证明"的最终凭据；
// 失败的核验尝试从不落库，posting_id 上的唯一索引兜底并发重复提交
type VerificationLog struct {
	ID            int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	InstitutionID int64 `gorm:"not null;index"           json:"institution_id"`
	PostingID     int64 `gorm:"not null;uniqueIndex:uq_verification_logs_posting" json:"posting_id"`
	SupervisorID  int64 `gorm:"not null"                 json:"supervisor_id"`
	SessionID     int64 `gorm:"not null"                 json:"session_id"`
	SchoolID      int64 `gorm:"not null"                 json:"school_id"`
	VisitNumber   int   `gorm:"not null;default:1"       json:"visit_number"`

	// 定位数据
	Latitude            float64  `gorm:"not null" json:"latitude"`
	Longitude           float64  `gorm:"not null" json:"longitude"`
	AccuracyM           *float64 `json:"accuracy_m,omitempty"`
	AltitudeM           *float64 `json:"altitude_m,omitempty"`
	DistanceFromSchoolM float64  `gorm:"not null" json:"distance_from_school_m"`
	GeofenceRadiusM     int      `gorm:"not null" json:"geofence_radius_m"`
	IsWithinGeofence    bool     `gorm:"not null;default:true" json:"is_within_geofence"`

	// 反作弊信号
	DeviceShared      bool        `gorm:"not null;default:false" json:"device_shared"`
	ValidationMessage string      `gorm:"type:text"              json:"validation_message,omitempty"`
	DeviceHash        string      `gorm:"type:varchar(32);not null;index:idx_verification_logs_device" json:"device_hash"`
	DeviceInfo        *DeviceInfo `gorm:"type:jsonb"             json:"device_info,omitempty"`

	// 请求元数据
	IPAddress     string `gorm:"type:varchar(45)"  json:"ip_address,omitempty"`
	UserAgent     string `gorm:"type:text"         json:"user_agent,omitempty"`
	AuthTokenHash string `gorm:"type:varchar(64)"  json:"-"` // 凭据摘要，仅用于关联分析，不可逆

	// 时钟信息
	ClientReportedAt  *time.Time `json:"client_reported_at,omitempty"`
	ClockDriftSeconds *int64     `json:"clock_drift_seconds,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// 关联
	Supervisor *User   `gorm:"foreignKey:SupervisorID;references:ID" json:"supervisor,omitempty"`
	School     *School `gorm:"foreignKey:SchoolID;references:ID"     json:"school,omitempty"`
}

// TableName 指定表名
func (VerificationLog) TableName() string { return "verification_logs" }

// [自证通过] internal/model/verification_log.go
