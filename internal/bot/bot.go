package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"team-receipts-bot/internal/extraction"
	"team-receipts-bot/internal/receipt"
)

const helpText = `Команды:
/new_team <название> — создать команду (вы станете администратором)
/invite <username> — пригласить пользователя в команду (только админ)
/receipts <с> <по> — чеки команды за период (даты ГГГГ-ММ-ДД)
/approve <id> — подтвердить чек (только админ)
/reject <id> — отклонить чек (только админ)

Чтобы загрузить чек, просто отправьте фото или PDF-файл.`

// Handler turns Telegram updates into service calls and formats replies.
type Handler struct {
	api         *tgbotapi.BotAPI
	svc         *receipt.Service
	client      *http.Client
	maxFileSize int64
}

// NewHandler creates a bot handler around the receipt service.
func NewHandler(api *tgbotapi.BotAPI, svc *receipt.Service, maxFileSize int64) *Handler {
	return &Handler{
		api:         api,
		svc:         svc,
		client:      &http.Client{Timeout: 60 * time.Second},
		maxFileSize: maxFileSize,
	}
}

// Run consumes updates until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := h.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			h.api.StopReceivingUpdates()
			return
		case upd := <-updates:
			h.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate processes a single update.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil {
		return
	}
	// Receipts are personal documents; the bot works in private chats only
	if !msg.Chat.IsPrivate() {
		return
	}

	// First-contact registration, and display name refresh afterwards
	if _, err := h.svc.RegisterUser(msg.From.ID, msg.From.UserName, strings.TrimSpace(msg.From.FirstName+" "+msg.From.LastName)); err != nil {
		slog.Error("register user failed", "telegram_id", msg.From.ID, "error", err)
		h.reply(msg, "⚠️ Что-то пошло не так, попробуйте позже.")
		return
	}

	switch {
	case msg.IsCommand():
		h.handleCommand(ctx, msg)
	case msg.Document != nil || len(msg.Photo) > 0:
		h.handleUpload(ctx, msg)
	default:
		h.reply(msg, "ℹ️ Отправьте чек файлом или фото, либо /help для списка команд")
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		h.reply(msg, helpText)
	case "new_team":
		h.cmdNewTeam(msg, args)
	case "invite":
		h.cmdInvite(msg, args)
	case "receipts":
		h.cmdReceipts(msg, args)
	case "approve":
		h.cmdSetStatus(msg, args, receipt.StatusApproved)
	case "reject":
		h.cmdSetStatus(msg, args, receipt.StatusRejected)
	default:
		h.reply(msg, "ℹ️ Неизвестная команда, /help для списка команд")
	}
}

func (h *Handler) cmdNewTeam(msg *tgbotapi.Message, args string) {
	if args == "" {
		h.reply(msg, "Формат: /new_team Название")
		return
	}
	team, err := h.svc.CreateTeam(msg.From.ID, args)
	if err != nil {
		h.replyError(msg, err)
		return
	}
	h.reply(msg, fmt.Sprintf("✅ Команда «%s» создана, вы — администратор", team.Name))
}

func (h *Handler) cmdInvite(msg *tgbotapi.Message, args string) {
	if args == "" {
		h.reply(msg, "Формат: /invite username")
		return
	}
	if _, err := h.svc.Invite(msg.From.ID, args); err != nil {
		h.replyError(msg, err)
		return
	}
	h.reply(msg, fmt.Sprintf("✅ Пользователь %s добавлен в команду", args))
}

func (h *Handler) cmdReceipts(msg *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		h.reply(msg, "Формат: /receipts 2025-01-01 2025-01-31")
		return
	}
	from, err1 := parseDate(fields[0])
	to, err2 := parseDate(fields[1])
	if err1 != nil || err2 != nil {
		h.reply(msg, "Неверный формат даты, используйте ГГГГ-ММ-ДД")
		return
	}

	receipts, total, err := h.svc.ListReceipts(msg.From.ID, from, to)
	if err != nil {
		h.replyError(msg, err)
		return
	}
	if len(receipts) == 0 {
		h.reply(msg, fmt.Sprintf("За период %s — %s чеков нет", fields[0], fields[1]))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Чеки за период %s — %s\n", fields[0], fields[1])
	fmt.Fprintf(&b, "Всего: %d на сумму %s\n\n", len(receipts), formatMoney(total))
	for _, r := range receipts {
		fmt.Fprintf(&b, "#%d  %s  %s  %s\n",
			r.ID, r.Date.Format("2006-01-02"), formatMoney(r.Amount), statusLabel(r.Status))
	}
	h.reply(msg, b.String())
}

func (h *Handler) cmdSetStatus(msg *tgbotapi.Message, args string, status receipt.Status) {
	id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil {
		h.reply(msg, "Формат: /approve 12 (номер чека из /receipts)")
		return
	}
	if err := h.svc.SetReceiptStatus(msg.From.ID, id, status); err != nil {
		h.replyError(msg, err)
		return
	}
	h.reply(msg, fmt.Sprintf("✅ Чек #%d: %s", id, statusLabel(status)))
}

func (h *Handler) handleUpload(ctx context.Context, msg *tgbotapi.Message) {
	fileID, filename, mimeType, declaredSize := uploadMeta(msg)

	// Cheap pre-check on declared size before downloading anything; the
	// pipeline validates again on actual bytes.
	if declaredSize > h.maxFileSize {
		h.replyError(msg, receipt.ErrTooLarge)
		return
	}

	data, downloadedName, err := h.downloadFile(ctx, fileID)
	if err != nil {
		slog.Error("file download failed", "file_id", fileID, "error", err)
		h.reply(msg, "⚠️ Не удалось загрузить файл, попробуйте ещё раз")
		return
	}
	if filename == "" {
		filename = downloadedName
	}

	rec, err := h.svc.Ingest(ctx, msg.From.ID, data, filename, mimeType)
	if err != nil {
		h.replyError(msg, err)
		return
	}

	h.reply(msg, fmt.Sprintf(
		"✅ Чек сохранён!\nНомер: #%d\nСумма: %s\nДата: %s\nСтатус: %s",
		rec.ID, formatMoney(rec.Amount), rec.Date.Format("2006-01-02"), statusLabel(rec.Status)))
}

// uploadMeta extracts the declared file metadata from a message. Photos
// arrive without a mime type; Telegram re-encodes them as JPEG.
func uploadMeta(msg *tgbotapi.Message) (fileID, filename, mimeType string, size int64) {
	if msg.Document != nil {
		d := msg.Document
		return d.FileID, d.FileName, d.MimeType, int64(d.FileSize)
	}
	// Largest available photo size is last
	ps := msg.Photo[len(msg.Photo)-1]
	return ps.FileID, "", "image/jpeg", int64(ps.FileSize)
}

func (h *Handler) downloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	f, err := h.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("getting file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Link(h.api.Token), nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading file body: %w", err)
	}
	return data, path.Base(f.FilePath), nil
}

func (h *Handler) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := h.api.Send(out); err != nil {
		slog.Error("sending reply failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

// replyError maps service errors onto user-facing messages. Business
// failures are reported verbatim; anything unexpected stays generic.
func (h *Handler) replyError(msg *tgbotapi.Message, err error) {
	var exErr *extraction.Error

	var text string
	switch {
	case errors.Is(err, receipt.ErrUserNotFound):
		text = "Сначала напишите боту /start"
	case errors.Is(err, receipt.ErrNoTeam):
		text = "Вы не состоите в команде. Создайте её: /new_team Название"
	case errors.Is(err, receipt.ErrUnsupportedType):
		text = "Такой формат не поддерживается. Отправьте JPEG, PNG, HEIC или PDF"
	case errors.Is(err, receipt.ErrTooLarge):
		text = "Файл слишком большой, максимум 20 МБ"
	case errors.Is(err, receipt.ErrIncompleteExtraction):
		text = "Не удалось найти на чеке дату и сумму. Попробуйте отправить более чёткое фото"
	case errors.Is(err, receipt.ErrTeamNameTaken):
		text = "Команда с таким названием уже есть"
	case errors.Is(err, receipt.ErrAlreadyInTeam):
		text = "Вы уже состоите в команде"
	case errors.Is(err, receipt.ErrNotAdmin):
		text = "Эта операция доступна только администратору команды"
	case errors.Is(err, receipt.ErrTargetNotFound):
		text = "Такой пользователь боту не знаком — он должен сначала написать /start"
	case errors.Is(err, receipt.ErrTargetAlreadyInTeam):
		text = "Этот пользователь уже состоит в команде"
	case errors.Is(err, receipt.ErrReceiptNotFound):
		text = "Чек с таким номером не найден"
	case errors.Is(err, receipt.ErrInvalidStatus):
		text = "Неизвестный статус чека"
	case errors.As(err, &exErr):
		if errors.Is(err, context.DeadlineExceeded) {
			text = "Распознавание заняло слишком много времени, попробуйте ещё раз"
		} else if errors.Is(err, extraction.ErrNoText) {
			text = "Не удалось прочитать текст на чеке. Попробуйте более чёткое фото"
		} else {
			text = "Не удалось распознать чек. Попробуйте ещё раз"
		}
	default:
		slog.Error("command failed", "error", err)
		text = "⚠️ Что-то пошло не так, попробуйте позже."
	}
	h.reply(msg, "❌ "+text)
}

// parseDate accepts ISO (2025-01-31) and local (31.01.2025) date formats.
func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	return time.Parse("02.01.2006", s)
}

func formatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d ₽", sign, cents/100, cents%100)
}

func statusLabel(s receipt.Status) string {
	switch s {
	case receipt.StatusPending:
		return "⏳ на проверке"
	case receipt.StatusApproved:
		return "✅ подтверждён"
	case receipt.StatusRejected:
		return "❌ отклонён"
	}
	return string(s)
}
