package models

// Role, bir kullanıcı rolünü temsil eder. Statik referans verisidir —
// seed migration'da oluşturulur, runtime'da değişmez.
type Role struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Permission, tek bir yetki kodunu temsil eder.
//
// Yetkiler role_permissions join tablosu üzerinden role bağlanır (RBAC):
// kullanıcıya doğrudan yetki ATANMAZ, her zaman rol üzerinden türetilir.
// Bir rolün yetki kümesi sırasız bir set'tir — sadece üyelik anlamlıdır.
type Permission struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Bilinen rol ID'leri — seed migration ile birebir aynı.
const (
	RoleAdmin      = "admin"
	RoleDepartment = "department"
	RoleStudent    = "student"
	RoleReviewer   = "reviewer"
)

// Bilinen yetki kodları — seed migration ile birebir aynı.
// Route guard'lar ve permission middleware bu sabitleri kullanır,
// string literal'lar handler'lara dağılmaz.
const (
	PermCreateOffer         = "create_offer"
	PermUpdateOffer         = "update_offer"
	PermDeleteOffer         = "delete_offer"
	PermViewListOffer       = "view_list_offer"
	PermCreateUser          = "create_user"
	PermUpdateUser          = "update_user"
	PermDeleteUser          = "delete_user"
	PermViewListUser        = "view_list_user"
	PermCreateProfile       = "create_profile"
	PermUpdateProfile       = "update_profile"
	PermViewProfile         = "view_profile"
	PermApproveProfile      = "approve_profile"
	PermCreateApplication   = "create_application"
	PermViewListApplication = "view_list_application"
)

// HasPermission, verilen yetki kodunun set içinde olup olmadığını kontrol eder.
// Permission listeleri kısa (≤ ~15 eleman) — linear scan map'ten ucuz.
func HasPermission(perms []string, code string) bool {
	for _, p := range perms {
		if p == code {
			return true
		}
	}
	return false
}
