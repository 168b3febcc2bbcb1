package handlers

import (
	"log/slog"

	"github.com/dkazakov/gemrelay/internal/config"
	"github.com/dkazakov/gemrelay/internal/gemini"
	"github.com/dkazakov/gemrelay/internal/media"
	"github.com/dkazakov/gemrelay/internal/session"
)

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Sessions   *session.Store
	Gemini     gemini.Client
	Downloader *media.Downloader
}
