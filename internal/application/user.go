package app

import (
	"context"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
)

type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.update(ctx, userID, chatID, func(u *entity.User) { u.SetState(state) })
}

// BeginCheck ждёт снимок лунки wellID (может быть пустым)
func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64, wellID string) (*entity.User, error) {
	return s.update(ctx, userID, chatID, func(u *entity.User) { u.BeginCheck(wellID) })
}

// StartProcessing атомарно переводит пользователя в анализ снимка.
// started == false: анализ предыдущего снимка ещё идёт.
func (s *UserService) StartProcessing(ctx context.Context, userID, chatID int64) (user *entity.User, started bool, err error) {
	user, err = s.update(ctx, userID, chatID, func(u *entity.User) { started = u.StartProcessing() })
	return user, started, err
}

// FinishCheck засчитывает проверку и возвращает в главное меню
func (s *UserService) FinishCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.update(ctx, userID, chatID, func(u *entity.User) { u.FinishCheck() })
}

func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

func (s *UserService) update(ctx context.Context, userID, chatID int64, fn func(*entity.User)) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, fn)
}
