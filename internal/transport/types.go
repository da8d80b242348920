package transport

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ParseModeMarkdown is Telegram's legacy Markdown mode.
const ParseModeMarkdown = "Markdown"

// ChatTarget addresses a chat either by numeric id or by public @username.
type ChatTarget struct {
	ChatID   int64
	Username string // "@channel"; used when ChatID is 0
	ThreadID int    // forum topic thread id (0 if none)
}

// ParseChatTarget accepts "-1001234567890", "@channel" or "channel".
func ParseChatTarget(raw string, threadID int) (ChatTarget, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChatTarget{}, errors.New("chat target is empty")
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id == 0 {
			return ChatTarget{}, errors.New("chat id must not be 0")
		}
		return ChatTarget{ChatID: id, ThreadID: threadID}, nil
	}
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	if len(s) < 2 || strings.ContainsAny(s, " \t/") {
		return ChatTarget{}, errors.New("invalid chat username: " + raw)
	}
	return ChatTarget{Username: s, ThreadID: threadID}, nil
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }

// Recipient renders the target the way the Bot API expects chat_id.
func (t ChatTarget) Recipient() string {
	if t.ChatID != 0 {
		return strconv.FormatInt(t.ChatID, 10)
	}
	return t.Username
}

func (t ChatTarget) String() string { return t.Recipient() }

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers text to a chat.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
