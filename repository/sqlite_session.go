package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akinalp/unistaj/database"
	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
)

// sqliteSessionRepo, SessionRepository interface'inin SQLite implementasyonu.
//
// Concrete *sql.DB tutar (TxQuerier değil) çünkü Rotate kendi transaction'ını
// database.WithTx ile başlatmak zorundadır.
type sqliteSessionRepo struct {
	db *sql.DB
}

// NewSQLiteSessionRepo, constructor.
func NewSQLiteSessionRepo(db *sql.DB) SessionRepository {
	return &sqliteSessionRepo{db: db}
}

func (r *sqliteSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sessions (id, user_id, refresh_token, expires_at)
		VALUES (?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshToken,
		session.ExpiresAt.UTC(),
	).Scan(&session.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *sqliteSessionRepo) FindActive(ctx context.Context, refreshToken string, now time.Time) (*models.Session, error) {
	// expires_at her zaman Go tarafından UTC parametre olarak yazılır ve
	// yine Go parametresi ile karşılaştırılır — format tutarlı kalır.
	query := `
		SELECT id, user_id, refresh_token, expires_at, created_at
		FROM sessions WHERE refresh_token = ? AND expires_at > ?`

	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, refreshToken, now.UTC()).Scan(
		&session.ID, &session.UserID, &session.RefreshToken,
		&session.ExpiresAt, &session.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}

	return session, nil
}

// Rotate — delete + insert tek transaction içinde.
//
// Tek kazanan garantisi guarded DELETE'ten gelir: satırı fiilen silen
// (RowsAffected == 1) çağrı kazanır. İkinci transaction aynı DELETE'i
// çalıştırdığında satır çoktan gitmiştir → 0 satır → pkg.ErrNotFound.
// SQLite write lock + busy_timeout sayesinde yarışan transaction'lar
// seri hale gelir; "ikisi de sildi" durumu mümkün değildir.
func (r *sqliteSessionRepo) Rotate(ctx context.Context, oldRefreshToken string, next *models.Session, now time.Time) error {
	if next.ID == "" {
		next.ID = uuid.NewString()
	}

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM sessions WHERE refresh_token = ? AND expires_at > ?`,
			oldRefreshToken, now.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete rotated session: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rotation delete: %w", err)
		}
		if n == 0 {
			// Token hiç yoktu, süresi dolmuştu veya yarışı başka bir
			// çağrı kazandı — hepsi aynı sonuç: rotation başarısız.
			return pkg.ErrNotFound
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO sessions (id, user_id, refresh_token, expires_at)
			 VALUES (?, ?, ?, ?)
			 RETURNING created_at`,
			next.ID, next.UserID, next.RefreshToken, next.ExpiresAt.UTC(),
		).Scan(&next.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert rotated session: %w", err)
		}

		return nil
	})
}

func (r *sqliteSessionRepo) RevokeAll(ctx context.Context, refreshToken string) error {
	// refresh_token UNIQUE'tir ama yine de tüm eşleşmeleri sileriz —
	// logout semantiği "bu değere ait ne varsa iptal et"tir.
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE refresh_token = ?`, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

func (r *sqliteSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

func (r *sqliteSessionRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}

func (r *sqliteSessionRepo) CountActive(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE expires_at > ?`, now.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}
