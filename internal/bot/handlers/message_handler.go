package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dkazakov/gemrelay/internal/gemini"
	"github.com/dkazakov/gemrelay/internal/markup"
	"github.com/dkazakov/gemrelay/internal/media"
	"github.com/dkazakov/gemrelay/internal/session"
)

const sendMessageTimeout = 10 * time.Second

type messageHandler struct {
	deps HandlerDeps
}

// NewMessageHandler creates the default handler that relays every non-command
// message (text, photo, document, voice) through the AI pipeline.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update without message or sender", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID

	switch {
	case len(msg.Photo) > 0:
		h.handleAttachment(ctx, b, chatID, media.Attachment{
			Kind:    media.KindImage,
			FileID:  bestPhoto(msg.Photo).FileID,
			Caption: msg.Caption,
		}, h.deps.Config.Messages.ErrorImage)

	case msg.Document != nil:
		h.handleAttachment(ctx, b, chatID, media.Attachment{
			Kind:     media.KindDocument,
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			Caption:  msg.Caption,
		}, h.deps.Config.Messages.ErrorDocument)

	case msg.Voice != nil:
		h.handleAttachment(ctx, b, chatID, media.Attachment{
			Kind:   media.KindVoice,
			FileID: msg.Voice.FileID,
		}, h.deps.Config.Messages.ErrorVoice)

	case msg.Text != "":
		if strings.HasPrefix(msg.Text, "/") {
			log.DebugContext(ctx, "Ignoring unknown command", "chat_id", chatID)
			return
		}
		h.handleText(ctx, b, chatID, msg.Text)

	default:
		log.DebugContext(ctx, "Ignoring message with unsupported content", "chat_id", chatID)
	}
}

// handleText relays a plain text message: the literal string is both the
// live request and the history record.
func (h messageHandler) handleText(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	log := h.deps.Logger.With("handler", "message")
	log.InfoContext(ctx, "Handling text message", "chat_id", chatID, "length", len(text))

	stopTyping := h.startTyping(ctx, b, chatID)
	defer close(stopTyping)

	h.relay(ctx, b, chatID, []gemini.Part{gemini.TextPart(text)}, text, h.deps.Config.Messages.ErrorGeneral)
}

// handleAttachment downloads the attachment into a transient local file,
// uploads it to the inference engine, and relays prompt plus file handle.
// The local file is removed on every exit path.
func (h messageHandler) handleAttachment(ctx context.Context, b *bot.Bot, chatID int64, att media.Attachment, errMsg string) {
	log := h.deps.Logger.With("handler", "message")
	log.InfoContext(ctx, "Handling attachment", "chat_id", chatID, "kind", att.Kind, "file_id", att.FileID)

	stopTyping := h.startTyping(ctx, b, chatID)
	defer close(stopTyping)

	path, mimeType, cleanup, err := h.deps.Downloader.Fetch(ctx, b, att)
	if err != nil {
		log.ErrorContext(ctx, "Attachment download failed", "error", err, "chat_id", chatID, "kind", att.Kind)
		h.sendError(ctx, b, chatID, errMsg)
		return
	}
	defer cleanup()

	filePart, err := h.deps.Gemini.Upload(ctx, path, mimeType)
	if err != nil {
		log.ErrorContext(ctx, "Attachment upload failed", "error", err, "chat_id", chatID, "kind", att.Kind)
		h.sendError(ctx, b, chatID, errMsg)
		return
	}

	parts := []gemini.Part{gemini.TextPart(att.Prompt()), filePart}
	h.relay(ctx, b, chatID, parts, att.Summary(), errMsg)
}

// relay runs the tail of the pipeline: read history, call the model, commit
// the user/model turn pair, and emit the formatted reply. Nothing is
// appended to the session unless the inference call succeeded, so a failure
// leaves the history exactly as it was.
func (h messageHandler) relay(ctx context.Context, b *bot.Bot, chatID int64, parts []gemini.Part, summary, errMsg string) {
	log := h.deps.Logger.With("handler", "message")

	history := h.deps.Sessions.History(chatID)

	aiCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Gemini.Timeout)
	defer cancel()
	reply, err := h.deps.Gemini.Reply(aiCtx, history, parts)
	if err != nil {
		log.ErrorContext(ctx, "AI generation failed", "error", err, "chat_id", chatID)
		h.sendError(ctx, b, chatID, errMsg)
		return
	}

	h.deps.Sessions.Append(chatID,
		session.NewTurn(session.RoleUser, summary),
		session.NewTurn(session.RoleModel, reply),
	)

	h.sendReply(ctx, b, chatID, reply)
}

// sendReply formats the model output as Telegram HTML and sends it, chunked
// to the transport limit, as one or more messages in order.
func (h messageHandler) sendReply(ctx context.Context, b *bot.Bot, chatID int64, reply string) {
	log := h.deps.Logger.With("handler", "message")

	formatted := markup.Format(reply)
	chunks := markup.Chunk(formatted, h.deps.Config.Telegram.MaxMessageLength)

	for i, chunk := range chunks {
		sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
		_, err := b.SendMessage(sendCtx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      chunk,
			ParseMode: models.ParseModeHTML,
		})
		cancel()
		if err != nil {
			log.ErrorContext(ctx, "Failed to send reply chunk", "error", err, "chat_id", chatID, "chunk", i, "chunks", len(chunks))
			return
		}
	}

	log.InfoContext(ctx, "Sent reply", "chat_id", chatID, "chunks", len(chunks))
}

func (h messageHandler) sendError(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send error message", "error", err, "chat_id", chatID)
	}
}

// startTyping sends a typing action immediately and then periodically until
// the returned channel is closed. Close it in a defer to stop the loop.
func (h messageHandler) startTyping(ctx context.Context, b *bot.Bot, chatID int64) chan struct{} {
	stopTyping := make(chan struct{})

	action := &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}
	if _, err := b.SendChatAction(ctx, action); err != nil {
		h.deps.Logger.DebugContext(ctx, "Failed to send typing action", "error", err, "chat_id", chatID)
	}

	interval := h.deps.Config.Telegram.TypingInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopTyping:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := b.SendChatAction(ctx, action); err != nil {
					h.deps.Logger.DebugContext(ctx, "Failed to send typing action", "error", err, "chat_id", chatID)
				}
			}
		}
	}()

	return stopTyping
}

// bestPhoto picks the highest-resolution size Telegram offers for a photo.
func bestPhoto(sizes []models.PhotoSize) models.PhotoSize {
	best := sizes[0]
	bestQuality := best.Width * best.Height
	for _, photo := range sizes[1:] {
		if quality := photo.Width * photo.Height; quality > bestQuality {
			bestQuality = quality
			best = photo
		}
	}
	return best
}
