// Package handlers contains the Telegram handlers that drive the relay
// pipeline: command handlers, the default message handler, and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Recover creates a middleware that turns a handler panic into a logged
// error and a single diagnostic message to the originating chat, so one
// conversation's failure never takes the process down.
func Recover(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				log := deps.Logger.With("middleware", "recover")
				log.ErrorContext(ctx, "Handler panicked", "panic", r, "update_id", update.ID)

				if update.Message == nil {
					return
				}
				chatID := update.Message.Chat.ID
				if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
					ChatID: chatID,
					Text:   deps.Config.Messages.ErrorGeneral,
				}); err != nil {
					log.ErrorContext(ctx, "Failed to send panic error message", "error", err, "chat_id", chatID)
				}
			}()

			next(ctx, b, update)
		}
	}
}
