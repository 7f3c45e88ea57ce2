// Package notify delivers run reports to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageLen is the Telegram limit for one text message, counted in
// UTF-16 code units.
const MaxMessageLen = 4096

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends text messages to a single chat.
type Telegram struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram creates a sink for chatID. With an empty token or a zero chat
// the sink is created but Send does nothing. timeout, when positive, bounds
// every Bot API request.
func NewTelegram(token string, chatID int64, timeout time.Duration, log *slog.Logger) (*Telegram, error) {
	return newTelegram(token, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout}, log)
}

func newTelegram(token string, chatID int64, endpoint string, client *http.Client, log *slog.Logger) (*Telegram, error) {
	t := &Telegram{chatID: chatID, log: log}
	if token == "" || chatID == 0 {
		return t, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	t.api = api
	return t, nil
}

// Enabled reports whether messages are actually delivered.
func (t *Telegram) Enabled() bool {
	return t != nil && t.api != nil && t.chatID != 0
}

// Send delivers text, split into several messages if it is too long. It
// returns when ctx is done even if a request is still in flight.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Enabled() {
		if t != nil && t.log != nil {
			t.log.Debug("notifications disabled, message dropped")
		}
		return nil
	}

	parts := splitMessage(text, MaxMessageLen)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.DisableWebPagePreview = true
		if err := t.send(ctx, msg); err != nil {
			return fmt.Errorf("send message part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := t.api.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// cutUnits splits s after at most limit UTF-16 units, keeping at least one
// rune in head.
func cutUnits(s string, limit int) (head, tail string) {
	n := 0
	for i, r := range s {
		l := utf16.RuneLen(r)
		if n+l > limit && i > 0 {
			return s[:i], s[i:]
		}
		n += l
	}
	return s, ""
}

// splitMessage cuts text into chunks of at most limit UTF-16 units,
// preferring line boundaries.
func splitMessage(text string, limit int) []string {
	if utf16Len(text) <= limit {
		return []string{text}
	}

	var (
		parts []string
		cur   strings.Builder
		n     int
	)
	flush := func() {
		if n > 0 {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			n = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		ln := utf16Len(line)
		if n+ln > limit {
			flush()
		}
		for ln > limit {
			head, tail := cutUnits(line, limit)
			parts = append(parts, head)
			line, ln = tail, ln-utf16Len(head)
		}
		if n == 0 && line == "\n" {
			continue
		}
		cur.WriteString(line)
		n += ln
	}
	flush()
	return parts
}
