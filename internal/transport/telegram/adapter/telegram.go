// Package adapter implements the transport.Sender contract on top of telebot.
package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	tele "gopkg.in/telebot.v4"

	"examnotify/internal/feed"
	kit "examnotify/internal/transport"
	logx "examnotify/pkg/logx"
)

const (
	defaultAttempts = 3
	defaultTimeout  = 10 * time.Second
)

type Config struct {
	Token string
	// APIURL overrides the Bot API base url (self-hosted server or tests).
	APIURL string
	// Attempts bounds the startup getMe probe.
	Attempts int
	// Timeout applies to every Bot API request.
	Timeout time.Duration
	// RetryDelay is the first backoff step between startup attempts.
	RetryDelay time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

// New connects to the Bot API. telebot's constructor calls getMe, so a
// returned Adapter has proven the token works. Exhausted retries yield a
// *feed.StartupConnectivityError.
func New(ctx context.Context, cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	settings := tele.Settings{
		Token:  cfg.Token,
		URL:    strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Client: &http.Client{Timeout: cfg.Timeout},
		// Updates are never consumed; the poller only exists to satisfy telebot.
		Poller: &tele.LongPoller{Timeout: cfg.Timeout},
		OnError: func(err error, _ tele.Context) {
			log.Warn("telegram error", logx.Err(err))
		},
	}

	var (
		bot      *tele.Bot
		attempts int
	)
	retrier := repeater.NewBackoff(cfg.Attempts, cfg.RetryDelay, repeater.WithMaxDelay(30*time.Second))
	err := retrier.Do(ctx, func() error {
		attempts++
		b, err := tele.NewBot(settings)
		if err != nil {
			log.Warn("telegram getMe failed", logx.Int("attempt", attempts), logx.Int("max", cfg.Attempts), logx.Err(err))
			return err
		}
		bot = b
		return nil
	})
	if err != nil {
		return nil, &feed.StartupConnectivityError{Attempts: attempts, Err: err}
	}

	log.Info("telegram connected", logx.String("bot", "@"+bot.Me.Username), logx.Int("attempts", attempts))
	return &Adapter{cfg: cfg, log: log, bot: bot}, nil
}

// Username returns the bot's @username as reported by getMe.
func (a *Adapter) Username() string {
	if a.bot == nil || a.bot.Me == nil {
		return ""
	}
	return a.bot.Me.Username
}

// SendText posts text to the target chat. Link previews follow opt.DisablePreview.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram: empty chat target")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return kit.MessageRef{}, err
		}
	}

	msg, err := a.bot.Send(to, text, &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	})
	if err != nil {
		return kit.MessageRef{}, err
	}

	ref := kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}
	if msg.Chat != nil {
		ref.ChatID = msg.Chat.ID
	}
	return ref, nil
}
