package handlers

import (
	"net/http"
	"time"

	"github.com/akinalp/unistaj/pkg"
	"github.com/akinalp/unistaj/repository"
)

// AdminHandler, yönetici endpoint'lerini yönetir.
// Route kaydında RequirePermission(models.PermViewListUser) ile korunur.
type AdminHandler struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewAdminHandler, constructor.
func NewAdminHandler(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) *AdminHandler {
	return &AdminHandler{userRepo: userRepo, sessionRepo: sessionRepo}
}

type statsResponse struct {
	TotalUsers     int `json:"total_users"`
	ActiveSessions int `json:"active_sessions"`
}

// Stats, GET /api/admin/stats
//
// Basit operasyonel sayaçlar: kayıtlı kullanıcı ve aktif oturum sayısı.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	totalUsers, err := h.userRepo.CountAll(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	activeSessions, err := h.sessionRepo.CountActive(r.Context(), time.Now())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, statsResponse{
		TotalUsers:     totalUsers,
		ActiveSessions: activeSessions,
	})
}
