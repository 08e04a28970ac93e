package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingPhoto UserState = "awaiting_photo" // Ожидание снимка лунки
	StateProcessing    UserState = "processing"     // Идёт анализ снимка
)

// User пользователь бота
type User struct {
	ID         int64     // Telegram User ID
	ChatID     int64     // Telegram Chat ID
	State      UserState // Текущее состояние пользователя
	LastWellID string    // Лунка, указанная в /check
	Checks     int       // Сколько снимков проанализировано
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// BeginCheck переводит пользователя в ожидание снимка указанной лунки.
func (u *User) BeginCheck(wellID string) {
	u.LastWellID = wellID
	u.State = StateAwaitingPhoto
}

// StartProcessing занимает пользователя анализом снимка.
// Возвращает false, если предыдущий снимок ещё анализируется.
func (u *User) StartProcessing() bool {
	if u.State == StateProcessing {
		return false
	}
	u.State = StateProcessing
	return true
}

// FinishCheck фиксирует завершённую проверку.
func (u *User) FinishCheck() {
	u.Checks++
	u.State = StateMainMenu
}
