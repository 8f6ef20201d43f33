// Package client, portal frontend'lerinin (CLI araçları, entegrasyon testleri,
// başka Go servisleri) auth subsystem'i ile konuşmasını sağlayan oturum
// koordinatörünü içerir.
//
// Koordinatör üç işi tek yerde toplar:
//  1. Access token'ın saklanması ve isteklere Bearer olarak eklenmesi
//  2. Refresh'in TEKİLLEŞTİRİLMESİ: aynı anda kaç caller gelirse gelsin
//     ağa tek refresh isteği çıkar (singleflight)
//  3. Proaktif yenileme: access token'ın süresi dolmadan ÖNCE arka planda
//     refresh tetiklenir, kullanıcı istekleri 401 duvarına çarpmaz
//
// Refresh token'a bu paket hiç DOKUNMAZ: o httpOnly cookie'dedir ve
// http.Client'ın cookie jar'ı tarafından taşınır.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultRenewSkew, proaktif yenilemenin expiry'den ne kadar önce
// tetikleneceği. 30 saniye: timer tetiklendiğinde token hâlâ geçerlidir,
// uçuştaki istekler etkilenmez.
const defaultRenewSkew = 30 * time.Second

// ErrNotAuthenticated, oturum yokken korumalı işlem denendiğinde döner.
var ErrNotAuthenticated = errors.New("client: not authenticated")

// Status, koordinatörün oturum durumu. ÜÇ durumludur — "henüz bilmiyorum"
// (Unresolved) ile "oturum yok" (Unauthenticated) farklı şeylerdir: UI
// Unresolved'da loading gösterir, Unauthenticated'da login ekranı.
type Status int

const (
	// StatusUnresolved — başlangıç durumu: Bootstrap henüz sonuçlanmadı.
	StatusUnresolved Status = iota
	// StatusAuthenticated — geçerli bir access token var.
	StatusAuthenticated
	// StatusUnauthenticated — oturum yok veya öldü; login gerekir.
	StatusUnauthenticated
)

// String, Status'un okunur hali (log mesajları için).
func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// apiEnvelope, server'ın standart {success, data, error} zarfı.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type loginData struct {
	AccessToken string   `json:"access_token"`
	ExpiresInMs int64    `json:"expires_in_ms"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type refreshData struct {
	AccessToken string `json:"access_token"`
	ExpiresInMs int64  `json:"expires_in_ms"`
}

// SessionCoordinator, tek bir kullanıcı oturumunun client tarafı sahibidir.
//
// Tüm metotlar goroutine-safe'tir. Tipik kullanım:
//
//	sc, _ := client.NewSessionCoordinator("https://portal.uni.edu", nil)
//	defer sc.Close()
//	sc.Bootstrap(ctx)                  // cookie varsa oturumu geri getir
//	sc.Login(ctx, email, password)     // yoksa login
//	resp, _ := sc.Do(req)              // Bearer token otomatik eklenir
type SessionCoordinator struct {
	baseURL string
	http    *http.Client
	skew    time.Duration

	mu          sync.Mutex
	status      Status
	accessToken string
	expiresAt   time.Time
	role        string
	permissions []string
	renewTimer  *time.Timer
	closed      bool

	// refreshGroup, eşzamanlı refresh çağrılarını tek ağa isteğine indirger.
	refreshGroup singleflight.Group

	// onStatusChange, durum her değiştiğinde (lock DIŞINDA) çağrılır.
	onStatusChange func(Status)
}

// NewSessionCoordinator, constructor.
//
// httpClient nil verilebilir — o zaman cookie jar'lı yeni bir client
// oluşturulur. Kendi client'ını veren caller'ın JAR TAKMASI ZORUNLUDUR,
// yoksa refresh cookie hiçbir isteğe binemez.
func NewSessionCoordinator(baseURL string, httpClient *http.Client) (*SessionCoordinator, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar, Timeout: 15 * time.Second}
	}

	return &SessionCoordinator{
		baseURL: baseURL,
		http:    httpClient,
		skew:    defaultRenewSkew,
		status:  StatusUnresolved,
	}, nil
}

// OnStatusChange, durum değişimlerinde çağrılacak callback'i kaydeder.
// Callback koordinatör lock'u tutulMADAN çağrılır — içinden Status(),
// Logout() vb. çağırmak güvenlidir.
func (sc *SessionCoordinator) OnStatusChange(fn func(Status)) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onStatusChange = fn
}

// Status, mevcut oturum durumunu döner.
func (sc *SessionCoordinator) Status() Status {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.status
}

// AccessToken, eldeki access token'ı döner. Oturum yoksa boş string.
func (sc *SessionCoordinator) AccessToken() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.accessToken
}

// ExpiresAt, eldeki access token'ın yaklaşık son geçerlilik anını döner.
// Oturum yoksa zero time.
func (sc *SessionCoordinator) ExpiresAt() time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.expiresAt
}

// Role, oturum sahibinin rolünü döner.
func (sc *SessionCoordinator) Role() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.role
}

// HasPermission, son login/refresh'te dönen yetki kümesinde kodu arar.
// UI guard'ları içindir — asıl kontrol her zaman server'dadır.
func (sc *SessionCoordinator) HasPermission(code string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, p := range sc.permissions {
		if p == code {
			return true
		}
	}
	return false
}

// Login, email/şifre ile oturum açar.
// Başarıda access token saklanır, refresh cookie jar'a iner, proaktif
// yenileme timer'ı kurulur ve durum Authenticated olur.
func (sc *SessionCoordinator) Login(ctx context.Context, email, password string) error {
	// Önceki oturumdan kalan credential state'i sessizce temizle —
	// timer dahil. Status'a dokunmayız: login sonucu onu zaten belirleyecek.
	sc.mu.Lock()
	sc.accessToken = ""
	sc.expiresAt = time.Time{}
	sc.stopTimerLocked()
	sc.mu.Unlock()

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	data, err := sc.postJSON(ctx, "/api/auth/login", body)
	if err != nil {
		return err
	}

	var login loginData
	if err := json.Unmarshal(data, &login); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	sc.storeSession(login.AccessToken, login.ExpiresInMs, login.Role, login.Permissions)
	return nil
}

// Bootstrap, uygulama açılışında oturumu geri getirmeyi dener.
//
// Jar'da geçerli bir refresh cookie varsa durum Authenticated'a,
// yoksa/ölmüşse Unauthenticated'a geçer. Bootstrap sonuçlanana kadar
// durum Unresolved kalır — UI bu pencerede login ekranı GÖSTERMEZ.
func (sc *SessionCoordinator) Bootstrap(ctx context.Context) error {
	if err := sc.Refresh(ctx); err != nil {
		return err
	}
	return nil
}

// Refresh, access token'ı yeniler.
//
// Eşzamanlı çağrılar singleflight ile tekilleştirilir: ağa TEK istek
// çıkar, sonuç tüm bekleyenlerle paylaşılır. Bu, rotation'ın tek-kazanan
// kuralıyla birlikte çalışır — client kendi kendisiyle yarışıp oturumunu
// öldüremez.
//
// Refresh başarısız olursa (hangi sebeple olursa olsun) durum
// Unauthenticated'a geçer ve local state temizlenir. Aynı refresh
// token'la RETRY YOKTUR: rotation onu çoktan tüketmiştir.
func (sc *SessionCoordinator) Refresh(ctx context.Context) error {
	_, err, _ := sc.refreshGroup.Do("refresh", func() (any, error) {
		return nil, sc.doRefresh(ctx)
	})
	return err
}

func (sc *SessionCoordinator) doRefresh(ctx context.Context) error {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return ErrNotAuthenticated
	}
	sc.mu.Unlock()

	data, err := sc.postJSON(ctx, "/api/auth/refresh", nil)
	if err != nil {
		// Ağ hatası ile reddedilen token'ı ayırt etmeyiz: iki durumda da
		// elimizdeki access token'a güvenemeyiz, oturum kapanır.
		sc.dropSession()
		return err
	}

	var refresh refreshData
	if err := json.Unmarshal(data, &refresh); err != nil {
		sc.dropSession()
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}

	sc.mu.Lock()
	role, perms := sc.role, sc.permissions
	sc.mu.Unlock()
	sc.storeSession(refresh.AccessToken, refresh.ExpiresInMs, role, perms)
	return nil
}

// Logout, oturumu kapatır.
//
// Server çağrısının SONUCUNA BAKILMAZ: local state her durumda temizlenir
// ve durum Unauthenticated olur. Server'a ulaşılamasa bile kullanıcı
// "çıkış yaptım" görür; DB'deki satır refresh TTL sonunda zaten ölür.
func (sc *SessionCoordinator) Logout(ctx context.Context) error {
	_, err := sc.postJSON(ctx, "/api/auth/logout", nil)
	sc.dropSession()
	return err
}

// Do, isteği Bearer access token ekleyerek gönderir.
//
// Yanıt 401 ise BİR KEZ refresh denenir ve istek yeni token'la tekrarlanır.
// İkinci 401 olduğu gibi döner — sonsuz refresh döngüsü yoktur.
// Tekrarlanabilmesi için body'li isteklerde req.GetBody set olmalıdır
// (http.NewRequest bytes.Buffer/strings.Reader için bunu kendisi yapar).
func (sc *SessionCoordinator) Do(req *http.Request) (*http.Response, error) {
	token := sc.AccessToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := sc.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Token süresi dolmuş olabilir — bir refresh, bir retry.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := sc.Refresh(req.Context()); err != nil {
		return nil, fmt.Errorf("request unauthorized and refresh failed: %w", err)
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+sc.AccessToken())

	return sc.http.Do(retry)
}

// Close, koordinatörü kapatır: timer durur, state temizlenir.
// Birden fazla kez çağrılabilir. Close sonrası timer tetiklense bile
// refresh YAPILMAZ (closed flag'i doRefresh'te kontrol edilir).
func (sc *SessionCoordinator) Close() {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	sc.closed = true
	sc.stopTimerLocked()
	sc.accessToken = ""
	sc.expiresAt = time.Time{}
	sc.permissions = nil
	sc.mu.Unlock()
}

// ─── Private helpers ───

// storeSession, yeni token'ı saklar, timer'ı yeniden kurar ve durumu
// Authenticated yapar.
func (sc *SessionCoordinator) storeSession(accessToken string, expiresInMs int64, role string, permissions []string) {
	ttl := time.Duration(expiresInMs) * time.Millisecond

	// Timer expiry'den skew kadar önce tetiklenir. Kalan ömür skew'i
	// AŞMIYORSA proaktif yenileme kurulmaz — o kadar kısa bir token için
	// yenileme ilk 401'de reaktif yapılır (bkz. Do).
	delay := ttl - sc.skew

	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	sc.accessToken = accessToken
	sc.expiresAt = time.Now().Add(ttl)
	sc.role = role
	sc.permissions = permissions
	sc.stopTimerLocked()
	if delay > 0 {
		sc.renewTimer = time.AfterFunc(delay, sc.renewInBackground)
	}
	changed := sc.status != StatusAuthenticated
	sc.status = StatusAuthenticated
	callback := sc.onStatusChange
	sc.mu.Unlock()

	if changed && callback != nil {
		callback(StatusAuthenticated)
	}
}

// dropSession, local oturum state'ini temizler ve durumu
// Unauthenticated yapar.
func (sc *SessionCoordinator) dropSession() {
	sc.mu.Lock()
	if sc.closed {
		// Teardown sonrası geç gelen refresh sonucu state'e dokunamaz.
		sc.mu.Unlock()
		return
	}
	sc.accessToken = ""
	sc.expiresAt = time.Time{}
	sc.role = ""
	sc.permissions = nil
	sc.stopTimerLocked()
	changed := sc.status != StatusUnauthenticated
	sc.status = StatusUnauthenticated
	callback := sc.onStatusChange
	sc.mu.Unlock()

	if changed && callback != nil {
		callback(StatusUnauthenticated)
	}
}

// renewInBackground, proaktif yenileme timer'ının callback'i.
func (sc *SessionCoordinator) renewInBackground() {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	sc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hata durumunda dropSession zaten çalıştı — burada yapılacak bir şey yok.
	_ = sc.Refresh(ctx)
}

// stopTimerLocked, aktif renewal timer'ını durdurur. Lock tutularak çağrılır.
func (sc *SessionCoordinator) stopTimerLocked() {
	if sc.renewTimer != nil {
		sc.renewTimer.Stop()
		sc.renewTimer = nil
	}
}

// postJSON, auth endpoint'lerine POST atar ve zarfın data alanını döner.
// 2xx dışındaki yanıtlar zarfın error mesajıyla hataya çevrilir.
func (sc *SessionCoordinator) postJSON(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, msg)
	}

	return envelope.Data, nil
}
