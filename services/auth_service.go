// Package services, business logic katmanını barındırır.
//
// Service Layer Pattern: Handler (HTTP) ile Repository (DB) arasında oturan
// katmandır. Tüm iş kuralları burada yaşar:
//   - Şifre doğrulama (bcrypt)
//   - Access/refresh token üretimi
//   - Refresh rotation ve oturum iptali
//   - Rol → yetki çözümü
//
// Service ASLA http.Request/Response bilmez — sadece domain modelleri alır/verir.
// Service ASLA doğrudan SQL çalıştırmaz — Repository interface'i kullanır.
package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg"
	"github.com/akinalp/unistaj/pkg/email"
	"github.com/akinalp/unistaj/repository"
)

// bcryptCost, şifre hash maliyeti. 12 = ~250ms/hash — brute-force'u yavaşlatır.
const bcryptCost = 12

// resetTokenTTL / resetCooldown — şifre sıfırlama akışı sabitleri.
const (
	resetTokenTTL = 20 * time.Minute
	resetCooldown = 90 * time.Second
)

// dummyPasswordHash, var olmayan kullanıcılar için yapılan sahte bcrypt
// karşılaştırmasının hedefi. "Kullanıcı yok" ve "şifre yanlış" yolları
// yaklaşık aynı sürede dönmelidir — yoksa yanıt süresi hesap varlığını sızdırır.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService interface'i — dışarıya açık API.
// Handler bu interface'e bağımlıdır, concrete struct'a değil.
type AuthService interface {
	// Login, email/şifre doğrular ve yeni bir access+refresh çifti üretir.
	// Bilinmeyen email ve yanlış şifre AYNI hatayı döner (enumeration koruması).
	Login(ctx context.Context, req *models.LoginRequest) (*AuthSession, error)

	// Refresh, refresh token'ı atomik olarak rotate eder ve yeni çift üretir.
	// Yetkiler kullanıcının GÜNCEL rolünden yeniden çözülür — eski access
	// token'daki snapshot değil.
	Refresh(ctx context.Context, refreshToken string) (*AuthSession, error)

	// Logout, refresh token'a ait tüm oturumları iptal eder. İdempotenttir.
	Logout(ctx context.Context, refreshToken string) error

	// ValidateAccessToken, access JWT'yi doğrular ve claims'i döner.
	// Stateless: DB'ye gitmez — geçerlilik sadece imza + expiry.
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)

	// ForgotPassword, şifre sıfırlama emaili gönderir.
	// Email DB'de yoksa da başarı döner (enumeration koruması).
	// Cooldown aktifse kalan süreyi saniye olarak döner.
	ForgotPassword(ctx context.Context, userEmail string) (int, error)

	// ResetPassword, email'deki token ile şifreyi günceller ve kullanıcının
	// TÜM oturumlarını iptal eder.
	ResetPassword(ctx context.Context, token, newPassword string) error

	// EnsureAdminAccount, seed admin hesabını oluşturur (yoksa).
	// Açılışta main.go tarafından çağrılır.
	EnsureAdminAccount(ctx context.Context, adminEmail, adminPassword string) error

	// RefreshTTL, kanonik refresh ömrünü döner — handler cookie MaxAge için kullanır.
	RefreshTTL() time.Duration
}

// AuthSession, login/refresh sonrası dönen kimlik bilgisi paketi.
//
// RefreshToken response BODY'sine asla yazılmaz — handler onu httpOnly
// cookie'ye koyar. Bu struct server içi taşıyıcıdır.
type AuthSession struct {
	AccessToken      string
	ExpiresInMs      int64
	RefreshToken     string
	RefreshExpiresAt time.Time
	Role             string
	Permissions      []string
	User             models.User
}

// authService, AuthService interface'inin implementasyonu.
type authService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	roleRepo    repository.RoleRepository
	resetRepo   repository.PasswordResetRepository
	emailSender email.EmailSender // nil olabilir — o zaman reset emaili devre dışı
	jwtSecret   []byte
	accessExp   time.Duration
	refreshExp  time.Duration
}

// NewAuthService, constructor.
//
// refreshExpDays hem login'de hem rotation'da kullanılır — refresh ömrü
// TEK kanonik değerdir. (Eski portal login'de 1 gün, refresh'te 7 gün
// veriyordu; bu bir sözleşme değil tutarsızlıktı.)
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	roleRepo repository.RoleRepository,
	resetRepo repository.PasswordResetRepository,
	emailSender email.EmailSender,
	jwtSecret string,
	accessExpMinutes int,
	refreshExpDays int,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		roleRepo:    roleRepo,
		resetRepo:   resetRepo,
		emailSender: emailSender,
		jwtSecret:   []byte(jwtSecret),
		accessExp:   time.Duration(accessExpMinutes) * time.Minute,
		refreshExp:  time.Duration(refreshExpDays) * 24 * time.Hour,
	}
}

// Login, kullanıcı girişi yapar.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*AuthSession, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	user, err := s.verifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	permissions, err := s.roleRepo.GetPermissionCodes(ctx, user.RoleID)
	if err != nil {
		return nil, err
	}

	session, err := s.issueTokens(user, permissions)
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.Create(ctx, &models.Session{
		UserID:       user.ID,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.RefreshExpiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Refresh, süresi dolmuş (veya dolmak üzere olan) access token'ı yeniler.
//
// Akış: aktif session bul → kullanıcıyı getir → ATOMİK rotate →
// güncel rolden yetki çöz → yeni çift üret.
//
// Rotation yarışında kaybeden çağrı (aynı refresh token'ı ikinci kez
// sunan) pkg.ErrForbidden görür — client bunun üzerine oturumu kapatır,
// retry ETMEZ: aynı token'la tekrar denemek asla başarılı olamaz.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthSession, error) {
	now := time.Now()

	sess, err := s.sessionRepo.FindActive(ctx, refreshToken, now)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid or expired refresh token", pkg.ErrForbidden)
		}
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Kullanıcı silinmiş — zinciri öldür.
			_ = s.sessionRepo.RevokeAll(ctx, refreshToken)
			return nil, fmt.Errorf("%w: invalid or expired refresh token", pkg.ErrForbidden)
		}
		return nil, err
	}

	newRefresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}

	next := &models.Session{
		UserID:       user.ID,
		RefreshToken: newRefresh,
		ExpiresAt:    now.Add(s.refreshExp),
	}

	if err := s.sessionRepo.Rotate(ctx, refreshToken, next, now); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Yarışı başka bir refresh çağrısı kazandı.
			return nil, fmt.Errorf("%w: invalid or expired refresh token", pkg.ErrForbidden)
		}
		return nil, err
	}

	// Yetkiler her rotation'da güncel rolden yeniden çözülür — access token
	// snapshot'ının bayatlama penceresi böylece access TTL ile sınırlı kalır.
	permissions, err := s.roleRepo.GetPermissionCodes(ctx, user.RoleID)
	if err != nil {
		return nil, err
	}

	session, err := s.issueTokens(user, permissions)
	if err != nil {
		return nil, err
	}
	session.RefreshToken = newRefresh
	session.RefreshExpiresAt = next.ExpiresAt

	return session, nil
}

// Logout, refresh token'a ait tüm oturumları iptal eder.
// Token DB'de yoksa da başarıdır — logout idempotenttir.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessionRepo.RevokeAll(ctx, refreshToken)
}

// ValidateAccessToken, JWT access token'ı doğrular ve claims'i döner.
func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}

	return claims, nil
}

// ForgotPassword, şifre sıfırlama emaili gönderir.
func (s *authService) ForgotPassword(ctx context.Context, userEmail string) (int, error) {
	user, err := s.userRepo.GetByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Enumeration koruması: email yoksa da sessizce başarı.
			return 0, nil
		}
		return 0, err
	}

	// Cooldown: aynı kullanıcıya 90 saniyede en fazla 1 email.
	if latest, err := s.resetRepo.GetLatestByUserID(ctx, user.ID); err == nil {
		elapsed := time.Since(latest.CreatedAt)
		if elapsed < resetCooldown {
			return int((resetCooldown - elapsed).Seconds()) + 1, nil
		}
	}

	plainToken, err := newRefreshToken() // aynı entropi: 32 random byte, hex
	if err != nil {
		return 0, err
	}

	// Eski token'ları temizle — kullanıcı başına tek aktif reset token.
	if err := s.resetRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return 0, err
	}

	if err := s.resetRepo.Create(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashResetToken(plainToken),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}); err != nil {
		return 0, err
	}

	if s.emailSender == nil {
		log.Printf("[auth] email sender not configured, skipping reset email for user %s", user.ID)
		return 0, nil
	}

	if err := s.emailSender.SendPasswordReset(ctx, user.Email, plainToken); err != nil {
		return 0, fmt.Errorf("%w: failed to send reset email", pkg.ErrInternal)
	}

	return 0, nil
}

// ResetPassword, reset token ile şifreyi günceller.
//
// Başarılı reset sonrası kullanıcının TÜM oturumları iptal edilir —
// şifre değişimi çalınmış refresh token'ları da öldürmelidir.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	record, err := s.resetRepo.GetByTokenHash(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrBadRequest)
		}
		return err
	}

	if time.Now().After(record.ExpiresAt) {
		_ = s.resetRepo.DeleteByID(ctx, record.ID)
		return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrBadRequest)
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, record.UserID, string(newHash)); err != nil {
		return err
	}

	if err := s.resetRepo.DeleteByUserID(ctx, record.UserID); err != nil {
		return err
	}

	return s.sessionRepo.DeleteByUserID(ctx, record.UserID)
}

// EnsureAdminAccount, seed admin hesabını oluşturur (varsa dokunmaz).
//
// Bcrypt hash runtime'da üretilir — migration dosyasına hash gömmek
// şifre değişimini imkânsızlaştırır ve hash'i repo geçmişine sızdırır.
func (s *authService) EnsureAdminAccount(ctx context.Context, adminEmail, adminPassword string) error {
	_, err := s.userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pkg.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if err := s.userRepo.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: string(hash),
		FullName:     "Portal Administrator",
		RoleID:       models.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}

	log.Printf("[auth] seeded admin account %s", adminEmail)
	return nil
}

// RefreshTTL, kanonik refresh ömrünü döner.
func (s *authService) RefreshTTL() time.Duration {
	return s.refreshExp
}

// ─── Private Helpers ───

// verifyCredentials, email+şifre doğrular.
//
// "Kullanıcı yok" ve "şifre yanlış" AYNI mesajla döner; bilinmeyen email
// yolunda da sahte bir bcrypt karşılaştırması yapılır ki iki yol
// yaklaşık aynı sürede tamamlansın.
func (s *authService) verifyCredentials(ctx context.Context, userEmail, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(password))
			return nil, fmt.Errorf("%w: invalid email or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", pkg.ErrUnauthorized)
	}

	return user, nil
}

// issueTokens, access JWT + refresh token üretir. Session satırı YAZMAZ —
// Login create, Refresh rotate eder; satır yazımı caller'ın işidir.
func (s *authService) issueTokens(user *models.User, permissions []string) (*AuthSession, error) {
	now := time.Now()

	claims := &models.TokenClaims{
		UserID:      user.ID,
		RoleID:      user.RoleID,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExp)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "unistaj",
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessString, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshString, err := newRefreshToken()
	if err != nil {
		return nil, err
	}

	sanitized := *user
	sanitized.PasswordHash = ""

	return &AuthSession{
		AccessToken:      accessString,
		ExpiresInMs:      s.accessExp.Milliseconds(),
		RefreshToken:     refreshString,
		RefreshExpiresAt: now.Add(s.refreshExp),
		Role:             user.RoleID,
		Permissions:      permissions,
		User:             sanitized,
	}, nil
}

// newRefreshToken, 32 byte kriptografik rastgelelik, hex encoded (64 karakter).
// Opak bir değerdir — içinde claim taşımaz, geçerliliği sadece DB satırı belirler.
func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashResetToken, reset token'ın DB'de saklanan SHA256 hash'ini üretir.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
