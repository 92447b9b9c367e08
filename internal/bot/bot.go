package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"walletbot/internal/config"
	"walletbot/internal/dedupe"
	"walletbot/internal/domain"
	"walletbot/internal/metrics"
	"walletbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gitlab.com/nevasik7/alerting/logger"
)

const (
	// MaxMessageLength Bot API limit for one text message, in UTF-16 code units
	MaxMessageLength = 4096

	DefaultHandleTimeout = 2 * time.Minute
)

// Sender is the part of tgbotapi.BotAPI used to answer
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UpdateSource long-polls updates, tgbotapi.BotAPI implements it
type UpdateSource interface {
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Replier interface {
	Reply(ctx context.Context, req service.Request) service.Reply
	Command() string
}

// Bot answers "/wallet <address>" and the refresh button under each report
type Bot struct {
	log     logger.Logger
	sender  Sender
	updates UpdateSource
	svc     Replier

	deduper       dedupe.Deduper   // optional
	metrics       *metrics.Metrics // optional
	pollTimeout   int
	handleTimeout time.Duration

	wg sync.WaitGroup
}

// New connects to the Bot API (getMe) with the configured token
func New(log logger.Logger, cfg *config.TelegramConfig, svc Replier) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("telegram config is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot api, error=%w", err)
	}
	api.Debug = cfg.Debug

	log.Infof("Authorized telegram bot @%s", api.Self.UserName)

	return NewWithClient(log, api, api, svc, cfg.PollTimeout)
}

func NewWithClient(log logger.Logger, sender Sender, updates UpdateSource, svc Replier, pollTimeout int) (*Bot, error) {
	if sender == nil || updates == nil {
		return nil, errors.New("telegram client is required")
	}
	if svc == nil {
		return nil, errors.New("report service is required")
	}
	if pollTimeout <= 0 {
		pollTimeout = 60
	}

	return &Bot{
		log:           log,
		sender:        sender,
		updates:       updates,
		svc:           svc,
		pollTimeout:   pollTimeout,
		handleTimeout: DefaultHandleTimeout,
	}, nil
}

func (b *Bot) WithDeduper(d dedupe.Deduper) *Bot {
	b.deduper = d
	return b
}

func (b *Bot) WithMetrics(m *metrics.Metrics) *Bot {
	b.metrics = m
	return b
}

// WithHandleTimeout bounds a single update, including the indexer fetch and the reply
func (b *Bot) WithHandleTimeout(d time.Duration) *Bot {
	if d > 0 {
		b.handleTimeout = d
	}
	return b
}

// Run polls until ctx is done, each update is handled on its own goroutine.
// Cancelling ctx stops polling only: accepted updates keep running until answered
// or handleTimeout passes, and Run waits for them before returning.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}

	ch := b.updates.GetUpdatesChan(u)
	b.log.Infof("Telegram polling started, timeout=%ds", b.pollTimeout)

	defer func() {
		b.updates.StopReceivingUpdates()
		b.wg.Wait()
		b.log.Infof("Telegram polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-ch:
			if !ok {
				return errors.New("telegram updates channel closed")
			}

			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()

				hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.handleTimeout)
				defer cancel()

				b.HandleUpdate(hctx, upd)
			}(upd)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("Panic while handling update=%d: %v", upd.UpdateID, r)
		}
	}()

	if b.duplicate(ctx, upd.UpdateID) {
		return
	}

	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) duplicate(ctx context.Context, updateID int) bool {
	if b.deduper == nil {
		return false
	}

	seen, err := b.deduper.Seen(ctx, strconv.Itoa(updateID))
	if err != nil {
		b.log.Warnf("Dedupe failed for update=%d, handling anyway, error=%v", updateID, err)
		return false
	}
	if seen {
		b.log.Debugf("Duplicate update ignored: %d", updateID)
		if b.metrics != nil {
			b.metrics.ObserveSkipped("duplicate")
		}
	}

	return seen
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}

	args, ok := b.commandArgs(msg.Text)
	if !ok {
		return
	}

	b.answer(ctx, msg.Chat.ID, args)
}

// refresh button: payload is the same command text the user would type
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Warnf("Failed to answer callback query %s, error=%v", cq.ID, err)
	}

	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}

	args, ok := b.commandArgs(cq.Data)
	if !ok {
		b.log.Debugf("Unknown callback payload %q", cq.Data)
		return
	}

	b.answer(ctx, cq.Message.Chat.ID, args)
}

func (b *Bot) commandArgs(text string) ([]string, bool) {
	cmd, args, ok := domain.SplitCommand(text)
	if !ok || !strings.EqualFold(cmd, b.svc.Command()) {
		return nil, false
	}

	return args, true
}

func (b *Bot) answer(ctx context.Context, chatID int64, args []string) {
	reply := b.svc.Reply(ctx, service.Request{
		Source: domain.SourceTelegram,
		ChatID: chatID,
		Args:   args,
	})

	chunks := splitMessage(reply.Text, MaxMessageLength)
	for i, chunk := range chunks {
		out := tgbotapi.NewMessage(chatID, chunk)
		// button goes under the last part
		if reply.Action != nil && i == len(chunks)-1 {
			out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(reply.Action.Label, reply.Action.Payload),
				),
			)
		}

		if _, err := b.sender.Send(out); err != nil {
			b.log.Errorf("Failed to send reply part %d/%d to chat=%d, error=%v", i+1, len(chunks), chatID, err)
			return
		}
	}
}

// splitMessage cuts text into parts of at most limit UTF-16 units, on line breaks when it can.
// Joining the parts gives text back.
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
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			n = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		size := utf16Len(line)
		if n+size > limit {
			flush()
		}
		if size <= limit {
			cur.WriteString(line)
			n += size
			continue
		}

		// single line over the limit
		for _, r := range line {
			rs := utf16.RuneLen(r)
			if rs < 0 {
				rs = 1
			}
			if n+rs > limit {
				flush()
			}
			cur.WriteRune(r)
			n += rs
		}
	}
	flush()

	return parts
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if rs := utf16.RuneLen(r); rs > 0 {
			n += rs
		} else {
			n++
		}
	}
	return n
}
