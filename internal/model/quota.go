// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "math"

// 配额相关常量。used_bytes 始终由 documents 表实时聚合得出，不做持久化计数。
const (
	// MaxUploadSize 是单个文件的绝对大小上限 (50 MiB)，超出范围的请求
	// 在配额计算之前直接拒绝。
	MaxUploadSize int64 = 50 * 1024 * 1024

	// QuotaLimitEmployee 是 employee 角色的存储配额 (100 MiB)。
	QuotaLimitEmployee int64 = 100 * 1024 * 1024
	// QuotaLimitManager 是 manager 角色的存储配额 (500 MiB)。
	QuotaLimitManager int64 = 500 * 1024 * 1024
	// QuotaLimitUnlimited 表示管理员角色不受配额限制。
	QuotaLimitUnlimited int64 = math.MaxInt64

	// 使用率阈值（百分比）。
	QuotaWarningPercent  = 80.0
	QuotaCriticalPercent = 95.0
)

// QuotaLimitForRole 返回角色对应的存储配额上限。
// 未知角色按最小配额处理（默认从严）。
func QuotaLimitForRole(role string) int64 {
	switch role {
	case RoleAdmin:
		return QuotaLimitUnlimited
	case RoleManager:
		return QuotaLimitManager
	default:
		return QuotaLimitEmployee
	}
}

// QuotaUsage 是某个用户当前配额使用情况的快照。
type QuotaUsage struct {
	UserID         uint    `json:"userId"`
	Role           string  `json:"role"`
	UsedBytes      int64   `json:"usedBytes"`
	LimitBytes     int64   `json:"limitBytes"`
	AvailableBytes int64   `json:"availableBytes"`
	UsagePercent   float64 `json:"usagePercent"`
	Warning        bool    `json:"warning"`  // >= 80%
	Critical       bool    `json:"critical"` // >= 95%
	Exceeded       bool    `json:"exceeded"` // >= 100%
}

// QuotaValidationResult 是上传校验的结构化结果。
// 配额拒绝不是错误，而是 Allowed=false 加上可读的拒绝原因。
type QuotaValidationResult struct {
	Allowed bool       `json:"allowed"`
	Reason  string     `json:"reason,omitempty"`
	Usage   QuotaUsage `json:"usage"`
}

// RoleUsageStats 是按角色聚合的使用统计。
type RoleUsageStats struct {
	Role            string  `json:"role"`
	UserCount       int     `json:"userCount"`
	UsedBytes       int64   `json:"usedBytes"`
	AvgUsagePercent float64 `json:"avgUsagePercent"`
}

// QuotaStatistics 是全体活跃用户的配额使用报告。
type QuotaStatistics struct {
	ByRole        []RoleUsageStats `json:"byRole"`
	TotalUsers    int              `json:"totalUsers"`
	WarningUsers  int              `json:"warningUsers"`  // 使用率 >= 80% 的用户数
	ExceededUsers int              `json:"exceededUsers"` // 使用率 >= 100% 的用户数
}
