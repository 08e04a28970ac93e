package api

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "culture-sentinel/internal/application"
	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/infrastructure/vision"
	"culture-sentinel/internal/logging"
)

const (
	msgStart = `👋 Привет! Я бот для контроля заражения бактериальных культур.

📸 Отправьте мне снимок лунки, и я проверю его двумя способами: локальной моделью и Gemini.

📋 Команды:
/check — начать проверку лунки (можно указать лунку: /check A2)
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте снимок лунки с микроскопа
2️⃣ Бот извлечёт признаки и прогонит их через модель
3️⃣ Параллельно снимок оценит Gemini
4️⃣ Вы получите оба вердикта, решение остаётся за вами

📋 Команды:
/check — начать проверку
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте снимок лунки для проверки."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto       = "📸 Пожалуйста, отправьте снимок лунки для проверки."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Анализирую снимок..."
	msgBusy            = "⏳ Предыдущий снимок ещё анализируется, подождите."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте другой снимок."
)

// WellAnalyzer анализ одного снимка
type WellAnalyzer interface {
	AnalyzeWell(ctx context.Context, img image.Image, imagePath string) entity.WellAnalysis
}

// sender часть tgbotapi.BotAPI, которой пользуется бот
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api      sender
	updates  func() tgbotapi.UpdatesChannel
	download func(ctx context.Context, fileID string) ([]byte, error)
	users    *app.UserService
	analyzer WellAnalyzer
	logger   *zap.Logger

	inflight sync.WaitGroup // снимки в анализе
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, analyzer WellAnalyzer, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)
	logger.Info("authorized on telegram", zap.String("account", botAPI.Self.UserName))

	b := &Bot{
		api:      botAPI,
		users:    users,
		analyzer: analyzer,
		logger:   logger,
	}
	b.updates = func() tgbotapi.UpdatesChannel {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		return botAPI.GetUpdatesChan(u)
	}
	b.download = func(ctx context.Context, fileID string) ([]byte, error) {
		return downloadFile(ctx, botAPI, fileID)
	}
	return b, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx.
// Снимки анализируются в фоне; перед выходом Run дожидается их.
func (b *Bot) Run(ctx context.Context) error {
	defer b.inflight.Wait()
	updates := b.updates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		user, started, err := b.users.StartProcessing(ctx, msg.From.ID, msg.Chat.ID)
		if err != nil {
			b.logger.Error("update user state", zap.Int64("user_id", msg.From.ID), zap.Error(err))
			return
		}
		if !started {
			b.sendMessage(msg.Chat.ID, msgBusy)
			return
		}
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			b.handlePhoto(ctx, msg, user)
		}()
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	var err error

	switch msg.Command() {
	case "start":
		_, err = b.users.Cancel(ctx, userID, chatID)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		wellID := strings.ToUpper(strings.TrimSpace(msg.CommandArguments()))
		_, err = b.users.BeginCheck(ctx, userID, chatID, wellID)
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "cancel":
		_, err = b.users.Cancel(ctx, userID, chatID)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}

	if err != nil {
		b.logger.Error("update user state", zap.String("command", msg.Command()), zap.Error(err))
	}
}

// handlePhoto анализирует снимок и отвечает обоими вердиктами.
// Пользователь уже переведён в StateProcessing.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	defer func() {
		if _, err := b.users.FinishCheck(ctx, userID, chatID); err != nil {
			b.logger.Error("finish check", zap.Error(err))
		}
	}()

	b.sendMessage(chatID, msgProcessing)

	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]
	data, err := b.download(ctx, photo.FileID)
	if err != nil {
		b.logger.Error("download photo", zap.Error(err))
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	img, err := vision.Decode(data, vision.TargetSize)
	if err != nil {
		b.logger.Warn("decode photo", zap.Int("bytes", len(data)), zap.Error(err))
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	// оракулу уходит исходный файл, а не уменьшенная копия
	path, cleanup, err := spoolImage(data, ".jpg")
	if err != nil {
		b.logger.Warn("spool photo", zap.Error(err))
	}
	defer cleanup()

	analysis := b.analyzer.AnalyzeWell(ctx, img, path)
	b.logger.Info("photo analysed",
		zap.Int64("user_id", userID),
		zap.String("well_id", user.LastWellID),
		zap.String("local", string(analysis.Local.Label)),
		zap.String("oracle", string(analysis.Oracle.Label)))

	b.sendMessage(chatID, formatAnalysis(user.LastWellID, analysis))
}

// formatAnalysis текст ответа с двумя независимыми вердиктами
func formatAnalysis(wellID string, a entity.WellAnalysis) string {
	var sb strings.Builder
	if wellID != "" {
		fmt.Fprintf(&sb, "🔬 Лунка %s\n\n", wellID)
	} else {
		sb.WriteString("🔬 Результат анализа\n\n")
	}

	if a.Local.OK() {
		fmt.Fprintf(&sb, "🌲 Модель: %s %s (уверенность %.0f%%)\n",
			labelIcon(a.Local.Label), labelText(a.Local.Label), a.Local.Confidence*100)
	} else {
		fmt.Fprintf(&sb, "🌲 Модель: ⚠️ ошибка: %s\n", a.Local.Error)
	}

	if a.Oracle.OK() {
		fmt.Fprintf(&sb, "🤖 Gemini: %s %s\n", labelIcon(a.Oracle.Label), labelText(a.Oracle.Label))
		if a.Oracle.Reasoning != "" {
			fmt.Fprintf(&sb, "💬 %s\n", a.Oracle.Reasoning)
		}
	} else {
		fmt.Fprintf(&sb, "🤖 Gemini: ⚠️ ошибка: %s\n", a.Oracle.Error)
	}

	if a.Local.OK() && a.Oracle.OK() && a.Local.Label != a.Oracle.Label {
		sb.WriteString("\n❗ Вердикты расходятся, проверьте лунку вручную.")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func labelIcon(l entity.Label) string {
	switch l {
	case entity.LabelClean:
		return "✅"
	case entity.LabelContaminated:
		return "🦠"
	default:
		return "❔"
	}
}

func labelText(l entity.Label) string {
	switch l {
	case entity.LabelClean:
		return "чистая"
	case entity.LabelContaminated:
		return "заражена"
	default:
		return "неопределённо"
	}
}

// spoolImage сохраняет снимок во временный файл с расширением ext
func spoolImage(data []byte, ext string) (string, func(), error) {
	f, err := os.CreateTemp("", "well-*"+ext)
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return f.Name(), cleanup, nil
}

// downloadFile скачивает файл из Telegram
func downloadFile(ctx context.Context, botAPI *tgbotapi.BotAPI, fileID string) ([]byte, error) {
	file, err := botAPI.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(botAPI.Token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
