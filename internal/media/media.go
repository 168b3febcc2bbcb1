// Package media normalizes Telegram attachments (photos, documents, voice
// notes) into prompts, history summaries, and transient local files for the
// AI client to upload.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies the attachment type of an inbound message.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindVoice    Kind = "voice"
)

// Default prompts used when an attachment arrives without a caption.
const (
	defaultImagePrompt    = "What is in this image?"
	defaultDocumentPrompt = "Analyze this document and describe its content."
	defaultVoicePrompt    = "Transcribe the speech in this audio and respond to the request."
)

// Attachment describes one inbound media item before download.
type Attachment struct {
	Kind     Kind
	FileID   string
	FileName string // set for documents; preserves the original extension
	Caption  string
}

// Prompt returns the caption, or the per-kind default when none was given.
// Voice notes always use the default: Telegram voice messages carry no caption.
func (a Attachment) Prompt() string {
	if a.Kind != KindVoice {
		if caption := strings.TrimSpace(a.Caption); caption != "" {
			return caption
		}
	}

	switch a.Kind {
	case KindImage:
		return defaultImagePrompt
	case KindDocument:
		return defaultDocumentPrompt
	case KindVoice:
		return defaultVoicePrompt
	}
	return ""
}

// Summary returns the compact text recorded in session history in place of
// the binary content.
func (a Attachment) Summary() string {
	switch a.Kind {
	case KindImage:
		return fmt.Sprintf("[Image]: %s", a.Prompt())
	case KindDocument:
		return fmt.Sprintf("[Document %s]: %s", a.FileName, a.Prompt())
	case KindVoice:
		return "[Voice message]"
	}
	return ""
}

// localName returns the collision-resistant file name used for the transient
// download. The Telegram file ID is unique per file; documents additionally
// keep their original name so downstream type inference sees the extension.
func (a Attachment) localName() string {
	switch a.Kind {
	case KindImage:
		return a.FileID + ".jpg"
	case KindVoice:
		return a.FileID + ".ogg"
	case KindDocument:
		name := filepath.Base(a.FileName)
		if name == "." || name == string(filepath.Separator) || name == "" {
			return a.FileID
		}
		return a.FileID + "_" + name
	}
	return a.FileID
}
