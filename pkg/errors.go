// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Go'da error'lar basit değerlerdir. errors.New() ile sabit error
// değişkenleri tanımlarız, karşılaştırma string yerine errors.Is() ile yapılır:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
//
// Auth akışındaki eşleme:
//   - Bozuk istek gövdesi / validation  → ErrBadRequest   (400)
//   - Geçersiz email/şifre (login)      → ErrUnauthorized (401)
//   - Geçersiz/süresi dolmuş oturum     → ErrForbidden    (403)
//   - Beklenmeyen sunucu hatası         → ErrInternal     (500)
package pkg

import "errors"

// Domain-level error'lar.
// Service katmanı bunları döner, handler pkg.Error() ile status code'a çevirir.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal error")
)
