package middleware

import (
	"net/http"

	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
)

// RequirePermission, access token'daki permissions snapshot'ında verilen
// kodun bulunmasını şart koşar. RequireAuth'tan SONRA zincirlenmelidir.
//
// Kontrol claims üzerinden yapılır, DB'den değil: rol yetkileri token
// yayınlandıktan sonra değişirse eski snapshot access TTL dolana kadar
// geçerli kalır (bkz. models.TokenClaims).
func RequirePermission(code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				// RequireAuth zincirde yok — programlama hatası ama yine de 401.
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			if !models.HasPermission(claims.Permissions, code) {
				pkg.ErrorWithMessage(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
