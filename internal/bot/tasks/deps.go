package tasks

import (
	"log/slog"

	"github.com/dkazakov/gemrelay/internal/config"
	"github.com/dkazakov/gemrelay/internal/media"
)

// TaskDeps provides dependencies for scheduled background tasks.
type TaskDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Downloader *media.Downloader
}
