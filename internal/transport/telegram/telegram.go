// Package telegram adapts the Telegram Bot API to the transport.Transport
// interface: a long-poll loop and allowlist gate, restructured around
// send/edit/delete instead of chunked stdout pumping.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/takopi-bot/takopi/internal/transport"
)

// Transport wraps a tgbotapi.BotAPI behind the capability interface the
// handler and scheduler consume.
type Transport struct {
	bot        *tgbotapi.BotAPI
	allowlist  map[int64]struct{}
	logUnknown bool
}

func New(token string, allowlist map[int64]struct{}, logUnknown bool) (*Transport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	return &Transport{bot: bot, allowlist: allowlist, logUnknown: logUnknown}, nil
}

// Poll starts the long-poll loop and returns a channel of normalized
// inbound messages from allowlisted chats only.
func (t *Transport) Poll(ctx context.Context) (<-chan transport.Inbound, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	out := make(chan transport.Inbound, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case up, ok := <-updates:
				if !ok {
					return
				}
				if up.Message == nil || up.Message.Text == "" {
					continue
				}
				chatID := up.Message.Chat.ID
				if _, allowed := t.allowlist[chatID]; !allowed {
					if t.logUnknown {
						log.Printf("telegram: ignored chat_id=%d text=%q", chatID, up.Message.Text)
					}
					continue
				}
				in := transport.Inbound{
					ThreadID: threadID(chatID),
					Text:     up.Message.Text,
				}
				if up.Message.ReplyToMessage != nil {
					in.ReplyTo = &transport.MessageRef{
						ThreadID:  threadID(chatID),
						MessageID: strconv.Itoa(up.Message.ReplyToMessage.MessageID),
					}
					in.ReplyText = up.Message.ReplyToMessage.Text
				}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (t *Transport) Send(ctx context.Context, threadIDStr string, msg transport.RenderedMessage) (transport.MessageRef, error) {
	chatID, err := parseThreadID(threadIDStr)
	if err != nil {
		return transport.MessageRef{}, err
	}
	m := tgbotapi.NewMessage(chatID, msg.Text)
	if msg.HTML {
		m.ParseMode = "HTML"
	}
	sent, err := t.bot.Send(m)
	if err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ThreadID: threadIDStr, MessageID: strconv.Itoa(sent.MessageID)}, nil
}

func (t *Transport) Edit(ctx context.Context, ref transport.MessageRef, msg transport.RenderedMessage) error {
	chatID, err := parseThreadID(ref.ThreadID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return fmt.Errorf("telegram: bad message id %q: %w", ref.MessageID, err)
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, msg.Text)
	if msg.HTML {
		edit.ParseMode = "HTML"
	}
	_, err = t.bot.Send(edit)
	return err
}

func (t *Transport) Delete(ctx context.Context, ref transport.MessageRef) error {
	chatID, err := parseThreadID(ref.ThreadID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return fmt.Errorf("telegram: bad message id %q: %w", ref.MessageID, err)
	}
	_, err = t.bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID))
	return err
}

// SetCommands registers the bot's command menu, best-effort.
func (t *Transport) SetCommands(cmds []tgbotapi.BotCommand) {
	if _, err := t.bot.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		log.Printf("telegram: setMyCommands failed: %v", err)
	}
}

func threadID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func parseThreadID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: bad thread id %q: %w", s, err)
	}
	return id, nil
}
