// SPDX-License-Identifier: MIT

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Telegram implements Gateway over the Telegram Bot API.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	http   *http.Client
	logger zerolog.Logger
}

// NewTelegram authenticates against the Bot API.
func NewTelegram(token string, logger zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot auth: %w", err)
	}
	logger.Info().
		Str("username", bot.Self.UserName).
		Msg("authenticated with the bot API")
	return &Telegram{
		bot:    bot,
		http:   &http.Client{Timeout: 0}, // streaming downloads, no global deadline
		logger: logger,
	}, nil
}

// Username returns the bot's @-name without the prefix.
func (t *Telegram) Username() string { return t.bot.Self.UserName }

// Updates returns the long-polling update channel.
func (t *Telegram) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	return t.bot.GetUpdatesChan(u)
}

// StopUpdates terminates the long-polling loop.
func (t *Telegram) StopUpdates() { t.bot.StopReceivingUpdates() }

// translateErr maps Bot API errors onto the gateway taxonomy.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			retry := time.Duration(apiErr.ResponseParameters.RetryAfter) * time.Second
			if retry <= 0 {
				retry = time.Second
			}
			return &FloodWaitError{RetryAfter: retry}
		}
		if apiErr.Code == 403 || apiErr.Code == 400 {
			return fmt.Errorf("%w: %s", ErrChatInaccessible, apiErr.Message)
		}
	}
	return err
}

func buttonsMarkup(buttons []Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func (t *Telegram) Send(ctx context.Context, chatID int64, p Payload) (MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return MessageRef{}, err
	}

	var sent tgbotapi.Message
	var err error
	if p.PhotoURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(p.PhotoURL))
		photo.Caption = p.Text
		photo.ParseMode = tgbotapi.ModeHTML
		if markup := buttonsMarkup(p.Buttons); markup != nil {
			photo.ReplyMarkup = markup
		}
		sent, err = t.bot.Send(photo)
	} else {
		msg := tgbotapi.NewMessage(chatID, p.Text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = p.DisableWebPreview
		if markup := buttonsMarkup(p.Buttons); markup != nil {
			msg.ReplyMarkup = markup
		}
		sent, err = t.bot.Send(msg)
	}
	if err != nil {
		return MessageRef{}, translateErr(err)
	}
	return MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (t *Telegram) Edit(ctx context.Context, ref MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := t.bot.Send(edit)
	return translateErr(err)
}

func (t *Telegram) Delete(ctx context.Context, ref MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 400 {
		// already gone
		return nil
	}
	return translateErr(err)
}

func (t *Telegram) Copy(ctx context.Context, from MessageRef, toChat int64) (MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return MessageRef{}, err
	}
	id, err := t.bot.CopyMessage(tgbotapi.NewCopyMessage(toChat, from.ChatID, from.MessageID))
	if err != nil {
		return MessageRef{}, translateErr(err)
	}
	return MessageRef{ChatID: toChat, MessageID: id.MessageID}, nil
}

func (t *Telegram) SendFile(ctx context.Context, chatID int64, fileID, caption string) (MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return MessageRef{}, err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	sent, err := t.bot.Send(doc)
	if err != nil {
		return MessageRef{}, translateErr(err)
	}
	return MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (t *Telegram) ProbeChat(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: t.bot.Self.ID,
		},
	})
	return translateErr(err)
}

func (t *Telegram) OpenFile(ctx context.Context, fileID string) (FileMeta, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return FileMeta{}, nil, err
	}
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return FileMeta{}, nil, translateErr(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(t.bot.Token), nil)
	if err != nil {
		return FileMeta{}, nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return FileMeta{}, nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return FileMeta{}, nil, fmt.Errorf("download file %s: status %d", fileID, resp.StatusCode)
	}

	meta := FileMeta{
		FileSize: int64(file.FileSize),
		MimeType: resp.Header.Get("Content-Type"),
	}
	return meta, resp.Body, nil
}
