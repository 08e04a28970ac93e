package port

import (
	"context"

	"culture-sentinel/internal/domain/entity"
)

// UserRepository состояние диалогов бота.
// Все методы работают с копиями: изменения видны только после Save или Update.
type UserRepository interface {
	// Get возвращает пользователя, заводя нового при первом обращении
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save перезаписывает пользователя целиком
	Save(ctx context.Context, user *entity.User) error

	// Update атомарно применяет fn и возвращает новое состояние
	Update(ctx context.Context, userID, chatID int64, fn func(*entity.User)) (*entity.User, error)
}
