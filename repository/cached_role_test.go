package repository

import (
	"context"
	"testing"

	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
)

// countingRoleRepo, kaç kez DB'ye inildiğini sayan fake RoleRepository.
type countingRoleRepo struct {
	permCalls int
	roleCalls int
	perms     map[string][]string
}

func (c *countingRoleRepo) GetByID(_ context.Context, id string) (*models.Role, error) {
	c.roleCalls++
	if _, ok := c.perms[id]; !ok {
		return nil, pkg.ErrNotFound
	}
	return &models.Role{ID: id, Code: id}, nil
}

func (c *countingRoleRepo) GetPermissionCodes(_ context.Context, roleID string) ([]string, error) {
	c.permCalls++
	return append([]string(nil), c.perms[roleID]...), nil
}

func TestCachedRoleRepoHitsInnerOnce(t *testing.T) {
	inner := &countingRoleRepo{perms: map[string][]string{
		models.RoleStudent: {models.PermCreateProfile},
	}}
	repo := NewCachedRoleRepo(inner)

	for i := 0; i < 5; i++ {
		codes, err := repo.GetPermissionCodes(context.Background(), models.RoleStudent)
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if len(codes) != 1 || codes[0] != models.PermCreateProfile {
			t.Fatalf("call %d: unexpected codes %v", i, codes)
		}
	}

	if inner.permCalls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.permCalls)
	}
}

func TestCachedRoleRepoCopiesSlice(t *testing.T) {
	inner := &countingRoleRepo{perms: map[string][]string{
		models.RoleStudent: {models.PermCreateProfile, models.PermViewListOffer},
	}}
	repo := NewCachedRoleRepo(inner)

	first, _ := repo.GetPermissionCodes(context.Background(), models.RoleStudent)
	first[0] = "mutated"

	second, _ := repo.GetPermissionCodes(context.Background(), models.RoleStudent)
	if second[0] != models.PermCreateProfile {
		t.Errorf("cache entry was mutated through caller's slice: %v", second)
	}
}

func TestCachedRoleRepoErrorNotCached(t *testing.T) {
	inner := &countingRoleRepo{perms: map[string][]string{}}
	repo := NewCachedRoleRepo(inner)

	if _, err := repo.GetByID(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, err := repo.GetByID(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown role on second call")
	}
	if inner.roleCalls != 2 {
		t.Errorf("errors must not be cached, expected 2 inner calls, got %d", inner.roleCalls)
	}
}
