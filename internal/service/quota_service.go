// Package service 实现了核心业务逻辑。
package service

import (
	"fmt"

	"docuchat-go/internal/model"
	"docuchat-go/internal/repository"
	"docuchat-go/pkg/log"
)

// QuotaService 负责按角色的存储配额校验与统计。
// 使用量始终从 documents 表实时聚合，只统计 completed 状态的文档。
type QuotaService interface {
	Usage(user *model.User) (*model.QuotaUsage, error)
	ValidateUpload(user *model.User, fileSize int64) (*model.QuotaValidationResult, error)
	Statistics() (*model.QuotaStatistics, error)
}

type quotaService struct {
	userRepo repository.UserRepository
	docRepo  repository.DocumentRepository
}

// NewQuotaService 创建一个新的 QuotaService 实例。
func NewQuotaService(userRepo repository.UserRepository, docRepo repository.DocumentRepository) QuotaService {
	return &quotaService{userRepo: userRepo, docRepo: docRepo}
}

// Usage 返回用户当前的配额使用快照。
func (s *quotaService) Usage(user *model.User) (*model.QuotaUsage, error) {
	used, err := s.docRepo.SumCompletedSizeByOwner(user.ID)
	if err != nil {
		log.Errorf("[QuotaService] 聚合用户使用量失败, UserID: %d, Err: %v", user.ID, err)
		return nil, fmt.Errorf("聚合用户使用量失败: %w", err)
	}
	usage := buildUsage(user, used)
	return &usage, nil
}

// ValidateUpload 校验一次上传是否被配额允许。
// 大小范围检查先于配额计算；admin 角色跳过配额比较但不跳过范围检查。
// 拒绝不是错误：返回 Allowed=false 与可读的原因。
func (s *quotaService) ValidateUpload(user *model.User, fileSize int64) (*model.QuotaValidationResult, error) {
	usage, err := s.Usage(user)
	if err != nil {
		return nil, err
	}
	result := &model.QuotaValidationResult{Usage: *usage}

	if fileSize <= 0 {
		result.Reason = "文件大小必须大于 0"
		return result, nil
	}
	if fileSize > model.MaxUploadSize {
		result.Reason = fmt.Sprintf("文件大小 %d 字节超过单文件上限 %d 字节", fileSize, model.MaxUploadSize)
		return result, nil
	}
	if user.IsAdmin() {
		result.Allowed = true
		return result, nil
	}
	if usage.UsedBytes+fileSize > usage.LimitBytes {
		result.Reason = fmt.Sprintf("需要 %d 字节, 剩余配额仅 %d 字节", fileSize, usage.AvailableBytes)
		return result, nil
	}

	result.Allowed = true
	return result, nil
}

// Statistics 汇总全体活跃用户的配额使用情况，按固定角色集合分组。
func (s *quotaService) Statistics() (*model.QuotaStatistics, error) {
	users, err := s.userRepo.FindAllActive()
	if err != nil {
		return nil, fmt.Errorf("查询活跃用户失败: %w", err)
	}

	byRole := map[string]*model.RoleUsageStats{}
	percentSums := map[string]float64{}
	for _, role := range []string{model.RoleEmployee, model.RoleManager, model.RoleAdmin} {
		byRole[role] = &model.RoleUsageStats{Role: role}
	}

	stats := &model.QuotaStatistics{TotalUsers: len(users)}
	for i := range users {
		user := &users[i]
		used, err := s.docRepo.SumCompletedSizeByOwner(user.ID)
		if err != nil {
			return nil, fmt.Errorf("聚合用户使用量失败 (user %d): %w", user.ID, err)
		}
		usage := buildUsage(user, used)

		rs, ok := byRole[user.Role]
		if !ok {
			// 未知角色按最小配额归入 employee 统计口径
			rs = byRole[model.RoleEmployee]
		}
		rs.UserCount++
		rs.UsedBytes += used
		percentSums[rs.Role] += usage.UsagePercent

		if usage.Warning {
			stats.WarningUsers++
		}
		if usage.Exceeded {
			stats.ExceededUsers++
		}
	}

	for _, role := range []string{model.RoleEmployee, model.RoleManager, model.RoleAdmin} {
		rs := byRole[role]
		if rs.UserCount > 0 {
			rs.AvgUsagePercent = percentSums[role] / float64(rs.UserCount)
		}
		stats.ByRole = append(stats.ByRole, *rs)
	}
	return stats, nil
}

// buildUsage 根据角色配额与已用字节数构造使用快照。
func buildUsage(user *model.User, used int64) model.QuotaUsage {
	limit := model.QuotaLimitForRole(user.Role)
	usage := model.QuotaUsage{
		UserID:     user.ID,
		Role:       user.Role,
		UsedBytes:  used,
		LimitBytes: limit,
	}
	if limit == model.QuotaLimitUnlimited {
		usage.AvailableBytes = model.QuotaLimitUnlimited
		return usage
	}
	usage.AvailableBytes = limit - used
	if usage.AvailableBytes < 0 {
		usage.AvailableBytes = 0
	}
	usage.UsagePercent = float64(used) / float64(limit) * 100
	usage.Warning = usage.UsagePercent >= model.QuotaWarningPercent
	usage.Critical = usage.UsagePercent >= model.QuotaCriticalPercent
	usage.Exceeded = usage.UsagePercent >= 100
	return usage
}
