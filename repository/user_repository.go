// Package repository, veritabanı erişim katmanıdır.
//
// Repository Pattern: her tablo için bir interface + concrete SQLite
// implementasyonu. Service katmanı interface'e bağımlıdır — testlerde
// gerçek SQLite (in-memory/temp dosya) veya fake geçilebilir.
package repository

import (
	"context"

	"github.com/akinalp/unistaj/models"
)

// UserRepository, kimlik dizini için interface.
// Auth subsystem'i kullanıcıları OKUR; tek yazma istisnası
// şifre güncelleme (reset akışı) ve açılıştaki admin seed'idir.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	CountAll(ctx context.Context) (int, error)
}
