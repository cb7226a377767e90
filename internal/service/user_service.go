package service

import (
	"errors"
	"fmt"

	"docuchat-go/internal/model"
	"docuchat-go/internal/repository"
	"docuchat-go/pkg/hash"
	"docuchat-go/pkg/log"

	"gorm.io/gorm"
)

// 用户管理相关的结构性错误。
var (
	ErrUserNotFound   = errors.New("用户不存在")
	ErrUserExists     = errors.New("用户名已存在")
	ErrUserDisabled   = errors.New("用户已被停用")
	ErrInvalidRole    = errors.New("无效的角色")
	ErrWeakPassword   = errors.New("密码长度至少 8 位")
	ErrEmptyUsername  = errors.New("用户名不能为空")
	ErrBadCredentials = errors.New("用户名或密码错误")
)

// UserService 负责用户档案与管理员的用户管理操作。
// 身份认证由上游网关签发的 JWT 完成，这里只做档案查询与开户/停用。
type UserService interface {
	GetByID(userID uint) (*model.User, error)
	Authenticate(username, password string) (*model.User, error)
	CreateUser(username, password, role, department string) (*model.User, error)
	SetActive(userID uint, active bool) error
	ListActive() ([]model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetByID 查询用户档案，停用用户视同不存在。
func (s *userService) GetByID(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserDisabled
	}
	return user, nil
}

// Authenticate 校验用户名密码。失败原因不区分用户不存在与密码错误。
func (s *userService) Authenticate(username, password string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserDisabled
	}
	if !hash.CheckPassword(password, user.PasswordHash) {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// CreateUser 由管理员开户。角色必须是已知角色之一。
func (s *userService) CreateUser(username, password, role, department string) (*model.User, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	switch role {
	case model.RoleEmployee, model.RoleManager, model.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	if _, err := s.userRepo.FindByUsername(username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}
	user := &model.User{
		Username:     username,
		PasswordHash: hashed,
		Role:         role,
		Department:   department,
		Active:       true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	log.Infof("[UserService] 用户创建成功, UserID: %d, Username: %s, Role: %s", user.ID, username, role)
	return user, nil
}

// SetActive 启用或停用一个用户。
func (s *userService) SetActive(userID uint, active bool) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	user.Active = active
	return s.userRepo.Update(user)
}

// ListActive 返回所有激活用户。
func (s *userService) ListActive() ([]model.User, error) {
	return s.userRepo.FindAllActive()
}
