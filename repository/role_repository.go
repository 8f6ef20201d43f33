package repository

import (
	"context"

	"github.com/akinalp/unistaj/models"
)

// RoleRepository, rol ve yetki referans verisi için interface.
//
// GetPermissionCodes, PermissionResolver'ın kendisidir: role_permissions
// join tablosu üzerinden rolün yetki kodlarını çözer. Pure read —
// aynı tablo içeriği için her zaman aynı küme döner.
type RoleRepository interface {
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetPermissionCodes(ctx context.Context, roleID string) ([]string, error)
}
