// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 用户角色常量，角色决定了配额上限与可上传的密级上限。
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// 文档密级常量，从低到高排列。
const (
	ClassificationPublic       = "public"
	ClassificationInternal     = "internal"
	ClassificationConfidential = "confidential"
	ClassificationRestricted   = "restricted"
)

// classificationRank 定义了密级的比较顺序。
var classificationRank = map[string]int{
	ClassificationPublic:       0,
	ClassificationInternal:     1,
	ClassificationConfidential: 2,
	ClassificationRestricted:   3,
}

// roleClassificationCeiling 定义了不同角色允许上传/访问的最高密级。
var roleClassificationCeiling = map[string]string{
	RoleEmployee: ClassificationInternal,
	RoleManager:  ClassificationConfidential,
	RoleAdmin:    ClassificationRestricted,
}

// User 定义了 users 表的 ORM 模型。
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	Role         string    `gorm:"type:varchar(20);not null;default:'employee'" json:"role"`
	Department   string    `gorm:"type:varchar(100)" json:"department"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// IsAdmin 判断用户是否为管理员。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidClassification 判断给定字符串是否为合法密级。
func ValidClassification(c string) bool {
	_, ok := classificationRank[c]
	return ok
}

// ClassificationWithinCeiling 判断密级 c 是否不超过角色 role 的密级上限。
// 未知角色不允许任何密级（默认拒绝）。
func ClassificationWithinCeiling(role, c string) bool {
	ceiling, ok := roleClassificationCeiling[role]
	if !ok {
		return false
	}
	cr, ok := classificationRank[c]
	if !ok {
		return false
	}
	return cr <= classificationRank[ceiling]
}
