package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dkazakov/gemrelay/internal/config"
	"github.com/dkazakov/gemrelay/internal/gemini"
	"github.com/dkazakov/gemrelay/internal/media"
	"github.com/dkazakov/gemrelay/internal/session"
)

// stubAI fakes the inference client so the pipeline can be driven without
// the real API.
type stubAI struct {
	reply     string
	replyErr  error
	uploadErr error
}

func (s stubAI) Reply(_ context.Context, _ []session.Turn, _ []gemini.Part) (string, error) {
	if s.replyErr != nil {
		return "", s.replyErr
	}
	return s.reply, nil
}

func (s stubAI) Upload(_ context.Context, _, mimeType string) (gemini.Part, error) {
	if s.uploadErr != nil {
		return gemini.Part{}, s.uploadErr
	}
	return gemini.Part{FileURI: "files/stub", MIMEType: mimeType}, nil
}

// newAPIServer fakes the Telegram Bot API methods the pipeline touches and
// serves fileData from the file endpoint.
func newAPIServer(t *testing.T, fileData []byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/file/bot") {
			_, _ = w.Write(fileData)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch path := strings.ToLower(r.URL.Path); {
		case strings.HasSuffix(path, "/getfile"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"file_id":"AgAC123","file_path":"photos/pic.jpg"}}`)
		case strings.HasSuffix(path, "/sendmessage"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":99}}}`)
		default:
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPipeline(t *testing.T, serverURL string, ai gemini.Client) (HandlerDeps, *bot.Bot) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	downloader, err := media.NewDownloader(t.TempDir(), 1<<20, log)
	if err != nil {
		t.Fatalf("NewDownloader: %v", err)
	}

	cfg := &config.Config{
		Telegram: config.TelegramConfig{MaxMessageLength: 4000, TypingInterval: 5 * time.Second},
		Gemini:   config.GeminiConfig{Timeout: 5 * time.Second},
		Messages: config.MessagesConfig{
			ErrorGeneral:  "general error",
			ErrorImage:    "image error",
			ErrorDocument: "document error",
			ErrorVoice:    "voice error",
		},
	}

	b, err := bot.New("test-token", bot.WithServerURL(serverURL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}

	return HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Sessions:   session.NewStore(),
		Gemini:     ai,
		Downloader: downloader,
	}, b
}

func textUpdate(chatID int64, text string) *models.Update {
	return &models.Update{ID: 1, Message: &models.Message{
		Chat: models.Chat{ID: chatID},
		From: &models.User{ID: 7},
		Text: text,
	}}
}

func photoUpdate(chatID int64, caption string) *models.Update {
	return &models.Update{ID: 2, Message: &models.Message{
		Chat:    models.Chat{ID: chatID},
		From:    &models.User{ID: 7},
		Photo:   []models.PhotoSize{{FileID: "AgAC123", Width: 1280, Height: 960}},
		Caption: caption,
	}}
}

func TestTextTurnAppendsPairOnSuccess(t *testing.T) {
	t.Parallel()

	srv := newAPIServer(t, nil)
	deps, b := newPipeline(t, srv.URL, stubAI{reply: "hi there"})

	NewMessageHandler(deps)(context.Background(), b, textUpdate(99, "hello"))

	history := deps.Sessions.History(99)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != session.RoleUser || history[0].Text() != "hello" {
		t.Errorf("first turn = %s %q, want user %q", history[0].Role, history[0].Text(), "hello")
	}
	if history[1].Role != session.RoleModel || history[1].Text() != "hi there" {
		t.Errorf("second turn = %s %q, want model %q", history[1].Role, history[1].Text(), "hi there")
	}
}

func TestTextTurnInferenceFailureLeavesSessionUntouched(t *testing.T) {
	t.Parallel()

	srv := newAPIServer(t, nil)
	deps, b := newPipeline(t, srv.URL, stubAI{replyErr: errors.New("model unavailable")})
	deps.Sessions.Append(99, session.NewTurn(session.RoleUser, "earlier"), session.NewTurn(session.RoleModel, "reply"))

	NewMessageHandler(deps)(context.Background(), b, textUpdate(99, "hello"))

	if got := deps.Sessions.Len(99); got != 2 {
		t.Errorf("history length = %d, want the prior 2 turns only", got)
	}
}

func TestAttachmentInferenceFailureLeavesNoTrace(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("jpegdata")...)
	srv := newAPIServer(t, data)
	deps, b := newPipeline(t, srv.URL, stubAI{replyErr: errors.New("model unavailable")})

	NewMessageHandler(deps)(context.Background(), b, photoUpdate(99, "what is this?"))

	if got := deps.Sessions.Len(99); got != 0 {
		t.Errorf("history length = %d, want 0 after failed inference", got)
	}
	assertNoLocalFiles(t, deps.Downloader.Dir())
}

func TestAttachmentUploadFailureLeavesNoTrace(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("jpegdata")...)
	srv := newAPIServer(t, data)
	deps, b := newPipeline(t, srv.URL, stubAI{uploadErr: errors.New("upload rejected")})

	NewMessageHandler(deps)(context.Background(), b, photoUpdate(99, ""))

	if got := deps.Sessions.Len(99); got != 0 {
		t.Errorf("history length = %d, want 0 after failed upload", got)
	}
	assertNoLocalFiles(t, deps.Downloader.Dir())
}

func TestAttachmentTurnRecordsSummaryOnSuccess(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("jpegdata")...)
	srv := newAPIServer(t, data)
	deps, b := newPipeline(t, srv.URL, stubAI{reply: "a bridge at sunset"})

	NewMessageHandler(deps)(context.Background(), b, photoUpdate(99, "what is this?"))

	history := deps.Sessions.History(99)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if want := "[Image]: what is this?"; history[0].Text() != want {
		t.Errorf("user turn = %q, want %q", history[0].Text(), want)
	}
	assertNoLocalFiles(t, deps.Downloader.Dir())
}

func assertNoLocalFiles(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no transient media files in %s, found %d", dir, len(entries))
	}
}

func TestBestPhoto(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		sizes    []models.PhotoSize
		expected string
	}{
		{
			name:     "single size",
			sizes:    []models.PhotoSize{{FileID: "only", Width: 90, Height: 90}},
			expected: "only",
		},
		{
			name: "largest area wins",
			sizes: []models.PhotoSize{
				{FileID: "thumb", Width: 90, Height: 90},
				{FileID: "medium", Width: 320, Height: 240},
				{FileID: "full", Width: 1280, Height: 960},
			},
			expected: "full",
		},
		{
			name: "order does not matter",
			sizes: []models.PhotoSize{
				{FileID: "full", Width: 1280, Height: 960},
				{FileID: "thumb", Width: 90, Height: 90},
			},
			expected: "full",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := bestPhoto(tc.sizes); got.FileID != tc.expected {
				t.Errorf("bestPhoto picked %q, want %q", got.FileID, tc.expected)
			}
		})
	}
}
