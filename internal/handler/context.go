// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"

	"docuchat-go/internal/model"

	"github.com/gin-gonic/gin"
)

// currentUser 从 AuthMiddleware 写入的上下文中取出完整的 User 对象。
func currentUser(c *gin.Context) (*model.User, error) {
	value, exists := c.Get("user")
	if !exists {
		return nil, errors.New("上下文中缺少用户信息")
	}
	user, ok := value.(*model.User)
	if !ok {
		return nil, errors.New("上下文中的用户数据类型错误")
	}
	return user, nil
}
