package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
)

// sqliteRoleRepo, RoleRepository interface'inin SQLite implementasyonu.
type sqliteRoleRepo struct {
	db *sql.DB
}

// NewSQLiteRoleRepo, constructor.
func NewSQLiteRoleRepo(db *sql.DB) RoleRepository {
	return &sqliteRoleRepo{db: db}
}

func (r *sqliteRoleRepo) GetByID(ctx context.Context, id string) (*models.Role, error) {
	query := `SELECT id, code, name FROM roles WHERE id = ?`

	role := &models.Role{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&role.ID, &role.Code, &role.Name)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// GetPermissionCodes, rolün yetki kodlarını role_permissions join'i üzerinden döner.
//
// Yetkisi olmayan rol için BOŞ slice döner — bu bir hata değildir.
// Dönen liste sırasız bir set olarak yorumlanmalıdır; ORDER BY sadece
// deterministik test çıktısı içindir, API sıra garantisi vermez.
func (r *sqliteRoleRepo) GetPermissionCodes(ctx context.Context, roleID string) ([]string, error) {
	query := `
		SELECT p.code
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ?
		ORDER BY p.code`

	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan permission code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permission rows: %w", err)
	}

	return codes, nil
}
