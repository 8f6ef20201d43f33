package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
	"github.com/akinalp/unistaj/pkg/ratelimit"
	"github.com/akinalp/unistaj/services"
)

// stubAuthService, handler testleri için programlanabilir AuthService.
// Her metot bir func field'ına delege eder — test istediği davranışı takar.
type stubAuthService struct {
	loginFn   func(ctx context.Context, req *models.LoginRequest) (*services.AuthSession, error)
	refreshFn func(ctx context.Context, token string) (*services.AuthSession, error)
	logoutFn  func(ctx context.Context, token string) error
}

func (s *stubAuthService) Login(ctx context.Context, req *models.LoginRequest) (*services.AuthSession, error) {
	return s.loginFn(ctx, req)
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (*services.AuthSession, error) {
	return s.refreshFn(ctx, token)
}

func (s *stubAuthService) Logout(ctx context.Context, token string) error {
	if s.logoutFn != nil {
		return s.logoutFn(ctx, token)
	}
	return nil
}

func (s *stubAuthService) ValidateAccessToken(string) (*models.TokenClaims, error) {
	return nil, pkg.ErrUnauthorized
}

func (s *stubAuthService) ForgotPassword(context.Context, string) (int, error) { return 0, nil }

func (s *stubAuthService) ResetPassword(context.Context, string, string) error { return nil }

func (s *stubAuthService) EnsureAdminAccount(context.Context, string, string) error { return nil }

func (s *stubAuthService) RefreshTTL() time.Duration { return 7 * 24 * time.Hour }

func okSession() *services.AuthSession {
	return &services.AuthSession{
		AccessToken:  "access-jwt",
		ExpiresInMs:  1800000,
		RefreshToken: "new-refresh-token",
		Role:         models.RoleStudent,
		Permissions:  []string{models.PermViewListOffer},
		User:         models.User{ID: "u1", Email: "ogrenci@uni.edu"},
	}
}

// findCookie, response'taki Set-Cookie'lerden isimle arar.
func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) pkg.APIResponse {
	t.Helper()
	var resp pkg.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp
}

// ─── Login ───

func TestLoginSetsRefreshCookie(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(_ context.Context, req *models.LoginRequest) (*services.AuthSession, error) {
			if req.Email != "ogrenci@uni.edu" {
				t.Errorf("unexpected email: %q", req.Email)
			}
			return okSession(), nil
		},
	}
	h := NewAuthHandler(svc, nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ogrenci@uni.edu","password":"pw-123456"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cookie := findCookie(t, rec, refreshCookieName)
	if cookie == nil {
		t.Fatal("refresh cookie not set")
	}
	if cookie.Value != "new-refresh-token" {
		t.Errorf("wrong cookie value: %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("refresh cookie must be HttpOnly")
	}
	if !cookie.Secure {
		t.Error("refresh cookie must be Secure")
	}
	if cookie.Path != refreshCookiePath {
		t.Errorf("expected cookie path %q, got %q", refreshCookiePath, cookie.Path)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite=Lax, got %v", cookie.SameSite)
	}

	// Refresh token body'ye sızmamalı.
	if strings.Contains(rec.Body.String(), "new-refresh-token") {
		t.Error("refresh token leaked into response body")
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Errorf("expected success response, got %+v", resp)
	}
	data := resp.Data.(map[string]any)
	if data["access_token"] != "access-jwt" {
		t.Errorf("expected access token in body, got %v", data["access_token"])
	}
	if data["role"] != models.RoleStudent {
		t.Errorf("expected role in body, got %v", data["role"])
	}
}

func TestLoginErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("%w: email is required", pkg.ErrBadRequest), http.StatusBadRequest},
		{"credentials", fmt.Errorf("%w: invalid email or password", pkg.ErrUnauthorized), http.StatusUnauthorized},
		{"internal", fmt.Errorf("database exploded"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAuthService{
				loginFn: func(context.Context, *models.LoginRequest) (*services.AuthSession, error) {
					return nil, tc.err
				},
			}
			h := NewAuthHandler(svc, nil, true)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
				strings.NewReader(`{"email":"a@b.com","password":"x"}`))
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			if rec.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, rec.Code)
			}
			if findCookie(t, rec, refreshCookieName) != nil {
				t.Error("no cookie should be set on login failure")
			}
		})
	}
}

func TestLoginRateLimited(t *testing.T) {
	limiter := ratelimit.NewLoginRateLimiter(2, time.Minute)
	defer limiter.Stop()

	svc := &stubAuthService{
		loginFn: func(context.Context, *models.LoginRequest) (*services.AuthSession, error) {
			return nil, fmt.Errorf("%w: invalid email or password", pkg.ErrUnauthorized)
		},
	}
	h := NewAuthHandler(svc, limiter, true)

	doLogin := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"a@b.com","password":"wrong"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.Login(rec, req)
		return rec
	}

	if rec := doLogin(); rec.Code != http.StatusUnauthorized {
		t.Fatalf("attempt 1: expected 401, got %d", rec.Code)
	}
	if rec := doLogin(); rec.Code != http.StatusUnauthorized {
		t.Fatalf("attempt 2: expected 401, got %d", rec.Code)
	}

	rec := doLogin()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("attempt 3: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response must carry Retry-After header")
	}
}

// ─── Refresh ───

func TestRefreshWithoutCookie(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without cookie, got %d", rec.Code)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc := &stubAuthService{
		refreshFn: func(_ context.Context, token string) (*services.AuthSession, error) {
			if token != "old-refresh-token" {
				t.Errorf("expected old token from cookie, got %q", token)
			}
			return okSession(), nil
		},
	}
	h := NewAuthHandler(svc, nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "old-refresh-token"})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cookie := findCookie(t, rec, refreshCookieName)
	if cookie == nil || cookie.Value != "new-refresh-token" {
		t.Fatalf("expected rotated cookie, got %+v", cookie)
	}
	if strings.Contains(rec.Body.String(), "new-refresh-token") {
		t.Error("refresh token leaked into response body")
	}
}

func TestRefreshInvalidTokenClearsCookie(t *testing.T) {
	svc := &stubAuthService{
		refreshFn: func(context.Context, string) (*services.AuthSession, error) {
			return nil, fmt.Errorf("%w: invalid or expired refresh token", pkg.ErrForbidden)
		},
	}
	h := NewAuthHandler(svc, nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "dead-token"})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	cookie := findCookie(t, rec, refreshCookieName)
	if cookie == nil {
		t.Fatal("expected clearing Set-Cookie on 403")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Errorf("cookie should be cleared, got value=%q maxAge=%d", cookie.Value, cookie.MaxAge)
	}
}

// ─── Logout ───

func TestLogoutAlwaysSucceeds(t *testing.T) {
	cases := []struct {
		name      string
		cookie    bool
		logoutErr error
	}{
		{"with cookie", true, nil},
		{"without cookie", false, nil},
		{"revocation fails", true, fmt.Errorf("db is down")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAuthService{
				logoutFn: func(context.Context, string) error { return tc.logoutErr },
			}
			h := NewAuthHandler(svc, nil, true)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
			if tc.cookie {
				req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "some-token"})
			}
			rec := httptest.NewRecorder()
			h.Logout(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("logout must always return 200, got %d", rec.Code)
			}
			cookie := findCookie(t, rec, refreshCookieName)
			if cookie == nil || cookie.MaxAge >= 0 {
				t.Error("logout must clear the refresh cookie")
			}
		})
	}
}
