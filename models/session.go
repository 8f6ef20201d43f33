package models

import "time"

// Session, bir refresh token oturumunu temsil eder.
//
// Neden refresh token ayrı tabloda?
// Access token kısa ömürlü (30dk) — stateless, asla DB'den kontrol edilmez.
// Refresh token uzun ömürlü (7 gün) — access token yenilemek için kullanılır.
// Refresh token'ları DB'de tutarak:
//   - Çalınan token'ı iptal edebiliriz (revoke)
//   - Rotation'da "tek kazanan" garantisini DB üzerinden verebiliriz
//
// Invariant: canlı bir refresh zinciri için EN FAZLA bir geçerli satır vardır.
// Rotation satır eklemez, değiştirir: eski satır silinir, yenisi yazılır.
// Geçerlilik lazy kontrol edilir (expires_at > now) — background sweep yok.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"` // API'ye gönderilmez — sadece httpOnly cookie'de yaşar
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
