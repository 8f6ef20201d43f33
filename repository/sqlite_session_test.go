package repository

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/akinalp/unistaj/database"
	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
)

// newTestDB, temp dizinde gerçek bir SQLite dosyası açar ve embedded
// migration'ları uygular. Pure-Go driver sayesinde CI'da ek bağımlılık yok.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("failed to open embedded migrations: %v", err)
	}

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrationsFS)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSessionUser(t *testing.T, db *database.DB) *models.User {
	t.Helper()
	users := NewSQLiteUserRepo(db.Conn)
	user := &models.User{
		Email:        "ogrenci@uni.edu",
		PasswordHash: "irrelevant-for-session-tests",
		FullName:     "Test User",
		RoleID:       models.RoleStudent,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func TestSessionFindActive(t *testing.T) {
	db := newTestDB(t)
	user := seedSessionUser(t, db)
	repo := NewSQLiteSessionRepo(db.Conn)
	ctx := context.Background()

	valid := &models.Session{
		UserID:       user.ID,
		RefreshToken: "valid-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	if err := repo.Create(ctx, valid); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	expired := &models.Session{
		UserID:       user.ID,
		RefreshToken: "expired-token",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}
	if err := repo.Create(ctx, expired); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.FindActive(ctx, "valid-token", time.Now())
	if err != nil {
		t.Fatalf("find active failed: %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("wrong owner: %q", got.UserID)
	}

	// Süresi dolmuş satır hiç yokmuş gibi davranılır.
	if _, err := repo.FindActive(ctx, "expired-token", time.Now()); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("expired row must look like NotFound, got %v", err)
	}
	if _, err := repo.FindActive(ctx, "never-existed", time.Now()); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("unknown token must be NotFound, got %v", err)
	}
}

func TestSessionRotateReplacesRow(t *testing.T) {
	db := newTestDB(t)
	user := seedSessionUser(t, db)
	repo := NewSQLiteSessionRepo(db.Conn)
	ctx := context.Background()
	now := time.Now()

	old := &models.Session{
		UserID:       user.ID,
		RefreshToken: "token-v1",
		ExpiresAt:    now.Add(time.Hour),
	}
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	next := &models.Session{
		UserID:       user.ID,
		RefreshToken: "token-v2",
		ExpiresAt:    now.Add(time.Hour),
	}
	if err := repo.Rotate(ctx, "token-v1", next, now); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	// Eski satır gitti, yenisi geldi — aynı anda ikisi asla geçerli değil.
	if _, err := repo.FindActive(ctx, "token-v1", now); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("old token must be gone after rotation, got %v", err)
	}
	if _, err := repo.FindActive(ctx, "token-v2", now); err != nil {
		t.Errorf("new token must be active: %v", err)
	}

	// Aynı eski token'la ikinci rotation denemesi başarısız.
	if err := repo.Rotate(ctx, "token-v1", &models.Session{
		UserID: user.ID, RefreshToken: "token-v3", ExpiresAt: now.Add(time.Hour),
	}, now); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("reused old token must fail rotation, got %v", err)
	}

	// Süresi dolmuş satır da rotate EDİLEMEZ.
	stale := &models.Session{
		UserID:       user.ID,
		RefreshToken: "stale-token",
		ExpiresAt:    now.Add(-time.Minute),
	}
	if err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Rotate(ctx, "stale-token", &models.Session{
		UserID: user.ID, RefreshToken: "token-v4", ExpiresAt: now.Add(time.Hour),
	}, now); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("expired token must fail rotation, got %v", err)
	}
}

// TestSessionRotateSingleWinner — aynı refresh token ile yarışan N rotation'dan
// TAM OLARAK biri kazanmalı. busy_timeout pragma'sı sayesinde kaybedenler
// SQLITE_BUSY yerine temiz bir "0 satır silindi" (NotFound) görür.
func TestSessionRotateSingleWinner(t *testing.T) {
	db := newTestDB(t)
	user := seedSessionUser(t, db)
	repo := NewSQLiteSessionRepo(db.Conn)
	ctx := context.Background()
	now := time.Now()

	if err := repo.Create(ctx, &models.Session{
		UserID:       user.ID,
		RefreshToken: "contested-token",
		ExpiresAt:    now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := &models.Session{
				UserID:       user.ID,
				RefreshToken: "winner-" + string(rune('a'+i)),
				ExpiresAt:    now.Add(time.Hour),
			}
			results[i] = repo.Rotate(ctx, "contested-token", next, now)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, pkg.ErrNotFound):
			// kaybeden — beklenen
		default:
			t.Errorf("goroutine %d: unexpected rotation error: %v", i, err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly 1 rotation winner, got %d", winners)
	}

	count, err := repo.CountActive(ctx, now)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 active session after the race, got %d", count)
	}
}

func TestSessionRevokeAllIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := seedSessionUser(t, db)
	repo := NewSQLiteSessionRepo(db.Conn)
	ctx := context.Background()

	if err := repo.Create(ctx, &models.Session{
		UserID:       user.ID,
		RefreshToken: "revoke-me",
		ExpiresAt:    time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.RevokeAll(ctx, "revoke-me"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	// 0 satır silmek de başarıdır.
	if err := repo.RevokeAll(ctx, "revoke-me"); err != nil {
		t.Errorf("repeated revoke must succeed: %v", err)
	}
	if err := repo.RevokeAll(ctx, "never-existed"); err != nil {
		t.Errorf("revoke of unknown token must succeed: %v", err)
	}
}

func TestAdminRolePermissionSeed(t *testing.T) {
	db := newTestDB(t)
	roles := NewSQLiteRoleRepo(db.Conn)

	codes, err := roles.GetPermissionCodes(context.Background(), models.RoleAdmin)
	if err != nil {
		t.Fatalf("permission resolution failed: %v", err)
	}

	for _, want := range []string{
		models.PermCreateOffer, models.PermCreateUser,
		models.PermViewListOffer, models.PermViewListUser,
		models.PermUpdateOffer, models.PermUpdateUser,
	} {
		if !models.HasPermission(codes, want) {
			t.Errorf("admin role missing %q, got %v", want, codes)
		}
	}

	// Seed'li rollerin hepsinin en az bir yetkisi olmalı.
	for _, role := range []string{models.RoleDepartment, models.RoleStudent, models.RoleReviewer} {
		codes, err := roles.GetPermissionCodes(context.Background(), role)
		if err != nil {
			t.Fatalf("resolution for %s failed: %v", role, err)
		}
		if len(codes) == 0 {
			t.Errorf("seeded role %s has no permissions", role)
		}
	}
}
