package service

import (
	"testing"

	"docuchat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeUserRepo 是 UserRepository 的内存实现。
type fakeUserRepo struct {
	users []model.User
}

func (r *fakeUserRepo) Create(user *model.User) error {
	user.ID = uint(len(r.users) + 1)
	r.users = append(r.users, *user)
	return nil
}

func (r *fakeUserRepo) FindByUsername(username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByID(userID uint) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == userID {
			out := u
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindAllActive() ([]model.User, error) {
	var out []model.User
	for _, u := range r.users {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Update(user *model.User) error {
	for i, u := range r.users {
		if u.ID == user.ID {
			r.users[i] = *user
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeDocRepo 是 DocumentRepository 的内存实现，覆盖测试需要的查询。
type fakeDocRepo struct {
	usedByOwner map[uint]int64
	docs        map[string]*model.Document
}

func (r *fakeDocRepo) Create(doc *model.Document) error { return nil }
func (r *fakeDocRepo) FindByID(id string) (*model.Document, error) {
	if doc, ok := r.docs[id]; ok {
		return doc, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeDocRepo) FindByOwner(owner uint) ([]model.Document, error) { return nil, nil }
func (r *fakeDocRepo) FindBatchByIDs(ids []string) ([]*model.Document, error) {
	var out []*model.Document
	for _, id := range ids {
		if doc, ok := r.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}
func (r *fakeDocRepo) UpdateStatus(id, status string) error            { return nil }
func (r *fakeDocRepo) UpdateDetectedFormat(id, format string) error    { return nil }
func (r *fakeDocRepo) MarkCompleted(id string, chunkCount int) error { return nil }
func (r *fakeDocRepo) Delete(id string) error                        { return nil }
func (r *fakeDocRepo) SumCompletedSizeByOwner(owner uint) (int64, error) {
	return r.usedByOwner[owner], nil
}

func newQuotaFixture(used map[uint]int64, users ...model.User) QuotaService {
	return NewQuotaService(&fakeUserRepo{users: users}, &fakeDocRepo{usedByOwner: used})
}

func mib(n int64) int64 { return n * 1024 * 1024 }

func TestQuotaUsageThresholds(t *testing.T) {
	employee := model.User{ID: 1, Role: model.RoleEmployee, Active: true}

	cases := []struct {
		name     string
		used     int64
		warning  bool
		critical bool
		exceeded bool
	}{
		{"well below", mib(10), false, false, false},
		{"at warning", mib(80), true, false, false},
		{"at critical", mib(95), true, true, false},
		{"at limit", mib(100), true, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newQuotaFixture(map[uint]int64{1: tc.used}, employee)
			usage, err := svc.Usage(&employee)
			require.NoError(t, err)
			assert.Equal(t, tc.used, usage.UsedBytes)
			assert.Equal(t, mib(100), usage.LimitBytes)
			assert.Equal(t, tc.warning, usage.Warning)
			assert.Equal(t, tc.critical, usage.Critical)
			assert.Equal(t, tc.exceeded, usage.Exceeded)
		})
	}
}

func TestQuotaValidateUpload(t *testing.T) {
	employee := model.User{ID: 1, Role: model.RoleEmployee, Active: true}
	admin := model.User{ID: 2, Role: model.RoleAdmin, Active: true}

	t.Run("allows upload within quota", func(t *testing.T) {
		svc := newQuotaFixture(map[uint]int64{1: mib(10)}, employee)
		result, err := svc.ValidateUpload(&employee, mib(20))
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("rejects upload exceeding quota", func(t *testing.T) {
		svc := newQuotaFixture(map[uint]int64{1: mib(90)}, employee)
		result, err := svc.ValidateUpload(&employee, mib(20))
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.NotEmpty(t, result.Reason)
	})

	t.Run("exact fit is allowed", func(t *testing.T) {
		svc := newQuotaFixture(map[uint]int64{1: mib(90)}, employee)
		result, err := svc.ValidateUpload(&employee, mib(10))
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("file ceiling applies before quota", func(t *testing.T) {
		svc := newQuotaFixture(map[uint]int64{1: 0}, employee)
		result, err := svc.ValidateUpload(&employee, mib(51))
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})

	t.Run("zero and negative sizes are rejected", func(t *testing.T) {
		svc := newQuotaFixture(map[uint]int64{1: 0}, employee)
		for _, size := range []int64{0, -1} {
			result, err := svc.ValidateUpload(&employee, size)
			require.NoError(t, err)
			assert.False(t, result.Allowed)
		}
	})

	t.Run("admin skips quota but not file ceiling", func(t *testing.T) {
		svc := newQuotaFixture(map[uint]int64{2: mib(100000)}, admin)
		result, err := svc.ValidateUpload(&admin, mib(49))
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = svc.ValidateUpload(&admin, mib(51))
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})
}

func TestQuotaStatistics(t *testing.T) {
	users := []model.User{
		{ID: 1, Username: "e1", Role: model.RoleEmployee, Active: true},
		{ID: 2, Username: "e2", Role: model.RoleEmployee, Active: true},
		{ID: 3, Username: "m1", Role: model.RoleManager, Active: true},
		{ID: 4, Username: "a1", Role: model.RoleAdmin, Active: true},
		{ID: 5, Username: "gone", Role: model.RoleEmployee, Active: false},
	}
	used := map[uint]int64{
		1: mib(90),  // 90% -> warning
		2: mib(100), // 100% -> exceeded
		3: mib(50),  // 10%
		4: mib(999),
	}
	svc := newQuotaFixture(used, users...)

	stats, err := svc.Statistics()
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 2, stats.WarningUsers)
	assert.Equal(t, 1, stats.ExceededUsers)

	require.Len(t, stats.ByRole, 3)
	byRole := map[string]model.RoleUsageStats{}
	for _, rs := range stats.ByRole {
		byRole[rs.Role] = rs
	}
	assert.Equal(t, 2, byRole[model.RoleEmployee].UserCount)
	assert.Equal(t, mib(190), byRole[model.RoleEmployee].UsedBytes)
	assert.InDelta(t, 95.0, byRole[model.RoleEmployee].AvgUsagePercent, 0.01)
	assert.Equal(t, 1, byRole[model.RoleManager].UserCount)
	assert.Equal(t, 1, byRole[model.RoleAdmin].UserCount)
	// admin 无配额上限，使用率恒为 0
	assert.Equal(t, 0.0, byRole[model.RoleAdmin].AvgUsagePercent)
}
