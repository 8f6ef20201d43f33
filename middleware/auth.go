// Package middleware, HTTP request pipeline'ına giren ara katmanları içerir.
//
// Middleware nedir?
// Handler'dan ÖNCE çalışan, request'i inceleyip ya devam ettiren (next.ServeHTTP)
// ya da kesen (401/403 dönüp return) fonksiyondur. Zincir şeklinde dizilir:
//
//	mux → RequireAuth → RequirePermission → handler
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
	"github.com/akinalp/unistaj/services"
)

// contextKey, context çakışmalarını önlemek için özel tip.
// String kullanırsak başka paketlerin context value'larıyla çakışabilir.
type contextKey string

const claimsContextKey contextKey = "token_claims"

// RequireAuth, Authorization header'daki Bearer access token'ı doğrular
// ve claims'i request context'ine koyar.
//
// STATELESS: sadece imza + expiry kontrol edilir, DB'ye gidilmez.
// Yetki kontrolü de claims içindeki permissions snapshot'ından yapılır —
// korumalı istek yolunda hiçbir DB okuması yoktur.
func RequireAuth(authService services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := authService.ValidateAccessToken(tokenString)
			if err != nil {
				pkg.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext, RequireAuth'un context'e koyduğu claims'i çıkarır.
// RequireAuth'tan geçmemiş bir handler'da çağrılırsa ok=false döner.
func ClaimsFromContext(ctx context.Context) (*models.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*models.TokenClaims)
	return claims, ok
}
