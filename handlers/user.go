package handlers

import (
	"net/http"

	"github.com/akinalp/unistaj/middleware"
	"github.com/akinalp/unistaj/pkg"
	"github.com/akinalp/unistaj/repository"
)

// UserHandler, oturum sahibinin kendi bilgilerini dönen endpoint'leri yönetir.
type UserHandler struct {
	userRepo repository.UserRepository
}

// NewUserHandler, constructor.
func NewUserHandler(userRepo repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// meResponse — /me yanıtının data alanı: güncel DB kaydı + token'daki
// permissions snapshot'ı bir arada.
type meResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Me, GET /api/auth/me
//
// Access token'ı doğrulanmış kullanıcının kimliğini döner. Kullanıcı kaydı
// DB'den taze okunur (email/ad güncel), permissions ise token snapshot'ından
// gelir — UI'ın gördüğü yetkiler server'ın o token için uygulayacaklarıyla
// aynı kalır.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), claims.UserID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, meResponse{
		ID:          user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		Role:        user.RoleID,
		Permissions: claims.Permissions,
	})
}
