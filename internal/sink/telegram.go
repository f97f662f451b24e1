package sink

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"tvnotifyd/internal/notify"
	"tvnotifyd/pkg/logx"
)

// Telegram mirrors notifications to a chat. Best-effort: sends over the
// limiter's budget are dropped, send failures are logged and forgotten.
type Telegram struct {
	bot     *tele.Bot
	chat    *tele.Chat
	limiter *rate.Limiter
	log     logx.Logger
}

type TelegramConfig struct {
	Token      string
	ChatID     int64
	RatePerSec int
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	// Outbound only; no poller.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Telegram{
		bot:     b,
		chat:    &tele.Chat{ID: cfg.ChatID},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

func (s *Telegram) Emit(heading, body string, ch notify.Channel) {
	// Never block the notification path on Telegram's rate budget.
	if !s.limiter.Allow() {
		s.log.Debug("telegram alert dropped (rate limited)", logx.String("heading", heading))
		return
	}

	text := fmt.Sprintf("📺 %s\n%s", heading, body)
	if ch.Name != "" {
		text += fmt.Sprintf("\n(%s)", ch.Name)
	}

	start := time.Now()
	_, err := s.bot.Send(s.chat, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		s.log.Warn("telegram alert send failed", logx.String("heading", heading), logx.Err(err))
		return
	}
	s.log.Debug("telegram alert sent",
		logx.String("heading", heading),
		logx.Duration("took", time.Since(start)))
}
