package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, access token'ın (JWT) içindeki veriler.
//
// Access token stateless'tır: geçerlilik = imza + expiry.
// Server her request'te sadece imzayı doğrular — DB'ye GİTMEZ.
//
// Permissions alanı issuance anındaki SNAPSHOT'tır: rol yetkileri token
// yayınlandıktan sonra değişirse, eski snapshot access token'ın TTL'i
// (30 dakika) dolana kadar geçerli kalır. Bir sonraki refresh'te yetkiler
// kullanıcının GÜNCEL rolünden yeniden çözülür. Bu bayatlama penceresi
// bilinçli bir tasarım kararıdır ve access TTL ile sınırlıdır.
type TokenClaims struct {
	UserID      string   `json:"user_id"`
	RoleID      string   `json:"role_id"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}
