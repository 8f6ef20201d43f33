// Package handlers, HTTP request'lerini karşılayan katmandır.
//
// Handler'lar sadece şunları yapar:
//  1. Request'i parse et (JSON body, cookie, path param)
//  2. Service'i çağır
//  3. Sonucu JSON olarak döndür (pkg.JSON / pkg.Error)
//
// İş mantığı handler'da YAŞAMAZ — service katmanındadır.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
	"github.com/akinalp/unistaj/pkg/ratelimit"
	"github.com/akinalp/unistaj/services"
)

// refreshCookieName, refresh token'ı taşıyan httpOnly cookie'nin adı.
// Cookie Path'i /api/auth ile sınırlıdır: refresh token sadece auth
// endpoint'lerine gider, diğer API çağrılarında tarayıcı onu GÖNDERMEZ.
const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/auth"
)

// AuthHandler, kimlik doğrulama endpoint'lerini yönetir.
type AuthHandler struct {
	authService  services.AuthService
	limiter      *ratelimit.LoginRateLimiter
	cookieSecure bool
}

// NewAuthHandler, constructor.
func NewAuthHandler(authService services.AuthService, limiter *ratelimit.LoginRateLimiter, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		limiter:      limiter,
		cookieSecure: cookieSecure,
	}
}

// loginResponse — login yanıtının data alanı.
// Refresh token BURADA YOK: o sadece httpOnly cookie'de yaşar,
// JavaScript'in erişebileceği hiçbir yere yazılmaz.
type loginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresInMs int64       `json:"expires_in_ms"`
	Role        string      `json:"role"`
	Permissions []string    `json:"permissions"`
	User        models.User `json:"user"`
}

// refreshResponse — refresh yanıtının data alanı.
type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresInMs int64  `json:"expires_in_ms"`
}

// Login, POST /api/auth/login
//
// Body: {"email": "...", "password": "..."}
// 200 → access token + permissions body'de, refresh token httpOnly cookie'de.
// 400 → şekil hatası, 401 → kimlik hatası, 429 → rate limit.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if h.limiter != nil && !h.limiter.Allow(ip) {
		retryAfter := h.limiter.RetryAfterSeconds(ip)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
			"too many login attempts, try again in "+ratelimit.FormatRetryMessage(retryAfter))
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if h.limiter != nil {
		h.limiter.Reset(ip)
	}

	h.setRefreshCookie(w, session.RefreshToken)
	log.Printf("[auth] login: user %s (%s)", session.User.ID, session.Role)

	pkg.JSON(w, http.StatusOK, loginResponse{
		AccessToken: session.AccessToken,
		ExpiresInMs: session.ExpiresInMs,
		Role:        session.Role,
		Permissions: session.Permissions,
		User:        session.User,
	})
}

// Refresh, POST /api/auth/refresh
//
// Refresh token cookie'den okunur — body yok.
// 200 → yeni access token body'de, YENİ refresh token cookie'de (rotation).
// 401 → cookie hiç yok (oturum açılmamış).
// 403 → token geçersiz/süresi dolmuş/yarış kaybedilmiş; cookie temizlenir.
//
// 401/403 ayrımı client için anlamlıdır: 401 "hiç oturum yok",
// 403 "oturum vardı ama öldü" demektir — ikisinde de client login'e döner
// ama 403'te cookie'yi de süpürürüz.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "no active session")
		return
	}

	session, err := h.authService.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, pkg.ErrForbidden) {
			// Ölü token'ı tarayıcıdan da sil — sonraki istekler temiz başlasın.
			h.clearRefreshCookie(w)
		}
		pkg.Error(w, err)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)

	pkg.JSON(w, http.StatusOK, refreshResponse{
		AccessToken: session.AccessToken,
		ExpiresInMs: session.ExpiresInMs,
	})
}

// Logout, POST /api/auth/logout
//
// HER ZAMAN 200 döner: cookie yoksa da, token DB'de yoksa da, DB hatasında da.
// Client'ın local state temizliği server sonucuna bağlı olmamalıdır —
// logout'un görünür etkisi deterministiktir.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		h.clearRefreshCookie(w)
		pkg.JSON(w, http.StatusOK, map[string]string{"message": "no token to revoke"})
		return
	}

	if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
		// Sadece logla — yanıtı etkilemez.
		log.Printf("[auth] logout revocation failed: %v", err)
	}

	h.clearRefreshCookie(w)
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

// ForgotPassword, POST /api/auth/forgot-password
//
// Body: {"email": "..."}
// Email DB'de olsun olmasın 200 döner (enumeration koruması).
// Cooldown aktifse retry_after_seconds > 0 döner.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	retryAfter, err := h.authService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]any{
		"message":             "if the email exists, a reset link has been sent",
		"retry_after_seconds": retryAfter,
	})
}

// ResetPassword, POST /api/auth/reset-password
//
// Body: {"token": "...", "new_password": "..."}
// Başarıda kullanıcının tüm oturumları iptal edilir — yeniden login gerekir.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "password updated, please log in again"})
}

// ─── Cookie helpers ───

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(h.authService.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
