package repository

import (
	"context"
	"time"

	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg/cache"
)

// permissionCacheTTL — rol başına yetki kümesi bu süre boyunca bellekten
// servis edilir. Yetkiler seed verisidir ve pratikte değişmez; 30 saniyelik
// pencere access token TTL'inin (30 dk) çok altında kalır, snapshot
// bayatlama garantisini etkilemez.
const permissionCacheTTL = 30 * time.Second

// cachedRoleRepo, RoleRepository'yi saran caching decorator.
//
// Login ve refresh her seferinde permission join'i çalıştırır; yoğun
// saatlerde (ders çıkışı toplu login) aynı 4 rol için aynı sorgu binlerce
// kez koşar. Decorator bu sorguyu rol başına 30 saniyede bire indirir.
type cachedRoleRepo struct {
	inner RoleRepository
	perms *cache.TTLCache[string, []string]
	roles *cache.TTLCache[string, *models.Role]
}

// NewCachedRoleRepo, constructor. Close() çağrılmazsa cleanup goroutine'leri
// process ömrü boyunca yaşar — server kullanımında bu kabul edilebilir.
func NewCachedRoleRepo(inner RoleRepository) RoleRepository {
	return &cachedRoleRepo{
		inner: inner,
		perms: cache.New[string, []string](permissionCacheTTL, 5*time.Minute),
		roles: cache.New[string, *models.Role](permissionCacheTTL, 5*time.Minute),
	}
}

func (r *cachedRoleRepo) GetByID(ctx context.Context, id string) (*models.Role, error) {
	if role, ok := r.roles.Get(id); ok {
		return role, nil
	}

	role, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.roles.Set(id, role)
	return role, nil
}

func (r *cachedRoleRepo) GetPermissionCodes(ctx context.Context, roleID string) ([]string, error) {
	if codes, ok := r.perms.Get(roleID); ok {
		// Caller'a kopyayı veririz — slice'ı mutate ederse cache bozulmasın.
		return append([]string(nil), codes...), nil
	}

	codes, err := r.inner.GetPermissionCodes(ctx, roleID)
	if err != nil {
		return nil, err
	}
	r.perms.Set(roleID, codes)
	return append([]string(nil), codes...), nil
}
