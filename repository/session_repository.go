package repository

import (
	"context"
	"time"

	"github.com/akinalp/unistaj/models"
)

// SessionRepository, refresh token oturumları için interface.
//
// Geçerlilik lazy kontrol edilir: FindActive ve Rotate, süresi dolmuş
// satırı hiç yokmuş gibi davranır (pkg.ErrNotFound). Background sweep
// yoktur; DeleteExpired sadece fırsatçı temizlik içindir.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error

	// FindActive, refresh token'a karşılık gelen GEÇERLİ (expires_at > now)
	// session'ı döner. Satır var ama süresi dolmuşsa da pkg.ErrNotFound döner —
	// caller ikisini ayırt edemez ve etmemelidir.
	FindActive(ctx context.Context, refreshToken string, now time.Time) (*models.Session, error)

	// Rotate, eski refresh token'ın satırını siler ve yerine next'i yazar —
	// tek bir transaction içinde, ATOMİK olarak.
	//
	// Aynı eski token ile yarışan N çağrıdan yalnızca biri kazanır;
	// kaybedenler pkg.ErrNotFound görür. Hiçbir gözlemci eski ve yeni
	// satırı aynı anda geçerli göremez.
	Rotate(ctx context.Context, oldRefreshToken string, next *models.Session, now time.Time) error

	// RevokeAll, verilen refresh token'a ait tüm satırları siler.
	// İdempotenttir: 0 satır silinmesi başarıdır, hata değil.
	RevokeAll(ctx context.Context, refreshToken string) error

	// DeleteByUserID, kullanıcının tüm oturumlarını iptal eder
	// (şifre sıfırlama sonrası zorunlu re-login).
	DeleteByUserID(ctx context.Context, userID string) error

	DeleteExpired(ctx context.Context, now time.Time) error

	CountActive(ctx context.Context, now time.Time) (int, error)
}
