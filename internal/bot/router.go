// SPDX-License-Identifier: MIT

// Package bot routes platform updates: media messages into the ingest queue,
// commands to their handlers, deep-linked /start payloads to file delivery.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/telepost-bot/telepost/internal/collector"
	"github.com/telepost-bot/telepost/internal/gateway"
	"github.com/telepost-bot/telepost/internal/ingest"
	"github.com/telepost-bot/telepost/internal/log"
	"github.com/telepost-bot/telepost/internal/shortener"
	"github.com/telepost-bot/telepost/internal/store"
)

// Updater produces the long-polling update stream.
type Updater interface {
	Updates() tgbotapi.UpdatesChannel
	StopUpdates()
}

// Config wires a Router.
type Config struct {
	Updater   Updater
	Gateway   gateway.Gateway
	Store     store.Store
	Worker    *ingest.Worker
	Registry  *collector.Registry
	Shortener *shortener.Client
	BaseURL   string
}

// Router consumes the update stream. Media handling is cheap (one queue
// send); command handlers run inline.
type Router struct {
	cfg    Config
	logger zerolog.Logger
}

// New builds a Router.
func New(cfg Config) *Router {
	return &Router{cfg: cfg, logger: log.WithComponent("bot")}
}

// Run processes updates until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	updates := r.cfg.Updater.Updates()
	defer r.cfg.Updater.StopUpdates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			r.handle(ctx, upd)
		}
	}
}

func (r *Router) handle(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil && upd.Message.IsCommand():
		r.handleCommand(ctx, upd.Message)
	case upd.Message != nil:
		r.handleMedia(ctx, upd.Message, upd.Message.From.ID)
	case upd.ChannelPost != nil:
		r.handleChannelPost(ctx, upd.ChannelPost)
	}
}

// handleChannelPost ingests media posted to a channel some owner registered
// as their index channel. Posts to unknown channels are ignored.
func (r *Router) handleChannelPost(ctx context.Context, msg *tgbotapi.Message) {
	owner, err := r.cfg.Store.FindOwnerByIndexChannel(ctx, msg.Chat.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Error().Err(err).Int64(log.FieldChatID, msg.Chat.ID).Msg("index channel lookup failed")
		}
		return
	}
	r.handleMedia(ctx, msg, owner)
}

func (r *Router) handleMedia(ctx context.Context, msg *tgbotapi.Message, owner int64) {
	ev, ok := eventFrom(msg, owner)
	if !ok {
		return
	}
	if err := r.cfg.Worker.Enqueue(ctx, ev); err != nil {
		r.logger.Warn().Err(err).Int64(log.FieldOwnerID, owner).Msg("enqueue aborted")
	}
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	user := msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		r.handleStart(ctx, user, args)
	case "done":
		n := r.cfg.Registry.CloseNow(user)
		if n == 0 {
			r.reply(ctx, user, "Nothing is being collected right now.")
			return
		}
		r.reply(ctx, user, fmt.Sprintf("Closing %d open collection(s) for posting.", n))
	case "stats":
		r.handleStats(ctx, user)
	case "setchannel":
		r.handleSetChannel(ctx, user, args)
	case "indexchannel":
		r.handleIndexChannel(ctx, user, args)
	case "shortener":
		r.handleShortener(ctx, user, args)
	default:
		r.reply(ctx, user, "Unknown command.")
	}
}

func (r *Router) handleStart(ctx context.Context, user int64, payload string) {
	if composite, ok := strings.CutPrefix(payload, "get_"); ok {
		r.deliver(ctx, user, composite)
		return
	}
	r.reply(ctx, user,
		"👋 Send me video files, or post them to your index channel, and I will "+
			"collect them into batches and post them to your channel.\n\n"+
			"/setchannel &lt;id&gt; — set the channel I post to\n"+
			"/indexchannel &lt;id&gt; — set your archive channel\n"+
			"/shortener &lt;domain&gt; &lt;api key&gt; — enable link shortening\n"+
			"/done — post what I have collected so far\n"+
			"/stats — collection status")
}

// deliver resolves a get_<owner>_<uid> payload and sends the archived file
// into the requester's chat.
func (r *Router) deliver(ctx context.Context, user int64, composite string) {
	i := strings.Index(composite, "_")
	if i <= 0 || i == len(composite)-1 {
		r.reply(ctx, user, "That link looks broken.")
		return
	}
	owner, err := strconv.ParseInt(composite[:i], 10, 64)
	if err != nil {
		r.reply(ctx, user, "That link looks broken.")
		return
	}
	uid := composite[i+1:]

	rec, err := r.cfg.Store.GetFile(ctx, owner, uid)
	if err != nil {
		r.reply(ctx, user, "This file is no longer available.")
		return
	}

	caption := fmt.Sprintf("<b>%s</b>", html.EscapeString(rec.FileName))
	if r.cfg.BaseURL != "" {
		caption += fmt.Sprintf("\n▶️ <a href=\"%s/stream/%d/%s\">Stream</a>",
			strings.TrimRight(r.cfg.BaseURL, "/"), rec.OwnerID, rec.FileUniqueID)
	}
	if _, err := r.cfg.Gateway.SendFile(ctx, user, rec.FileID, caption); err != nil {
		r.logger.Error().Err(err).
			Int64(log.FieldOwnerID, owner).
			Str(log.FieldFileUniqueID, uid).
			Msg("file delivery failed")
		r.reply(ctx, user, "Delivery failed, try again in a moment.")
	}
}

func (r *Router) handleStats(ctx context.Context, user int64) {
	stats := r.cfg.Registry.Stats()
	files, err := r.cfg.Store.FileCount(ctx, user)
	if err != nil {
		r.logger.Warn().Err(err).Msg("file count unavailable")
	}
	r.reply(ctx, user, fmt.Sprintf(
		"📊 Open collections: %d\nPending files: %d\nArchived files: %d",
		stats.OpenWindows, stats.PendingFiles, files))
}

func (r *Router) handleSetChannel(ctx context.Context, user int64, args string) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		r.reply(ctx, user, "Usage: /setchannel &lt;channel id&gt;")
		return
	}
	// Refuse up front rather than at posting time.
	if err := r.cfg.Gateway.ProbeChat(ctx, id); err != nil {
		if errors.Is(err, gateway.ErrChatInaccessible) {
			r.reply(ctx, user, "I cannot post there. Add me to the channel as an admin first.")
			return
		}
		r.reply(ctx, user, "Could not verify the channel, try again.")
		return
	}
	_, err = r.cfg.Store.UpdateUser(ctx, user, func(u *store.User) error {
		u.PostChannels = []int64{id}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Int64(log.FieldOwnerID, user).Msg("saving post channel failed")
		r.reply(ctx, user, "Saving failed, try again.")
		return
	}
	r.reply(ctx, user, fmt.Sprintf("✅ Posting to <code>%d</code> from now on.", id))
}

func (r *Router) handleIndexChannel(ctx context.Context, user int64, args string) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		r.reply(ctx, user, "Usage: /indexchannel &lt;channel id&gt;")
		return
	}
	_, err = r.cfg.Store.UpdateUser(ctx, user, func(u *store.User) error {
		u.IndexDBChannel = id
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Int64(log.FieldOwnerID, user).Msg("saving index channel failed")
		r.reply(ctx, user, "Saving failed, try again.")
		return
	}
	r.reply(ctx, user, fmt.Sprintf("✅ Watching <code>%d</code> as your index channel.", id))
}

func (r *Router) handleShortener(ctx context.Context, user int64, args string) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		r.reply(ctx, user, "Usage: /shortener &lt;domain&gt; &lt;api key&gt;")
		return
	}
	domain, api := parts[0], parts[1]
	if r.cfg.Shortener != nil && !r.cfg.Shortener.Validate(ctx, domain, api) {
		r.reply(ctx, user, "That shortener rejected the key. Check the domain and API key.")
		return
	}
	_, err := r.cfg.Store.UpdateUser(ctx, user, func(u *store.User) error {
		u.ShortenerURL = domain
		u.ShortenerAPI = api
		u.ShortenerEnabled = true
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Int64(log.FieldOwnerID, user).Msg("saving shortener failed")
		r.reply(ctx, user, "Saving failed, try again.")
		return
	}
	r.reply(ctx, user, fmt.Sprintf("✅ Links will be shortened via <code>%s</code>.", html.EscapeString(domain)))
}

func (r *Router) reply(ctx context.Context, chat int64, text string) {
	_, err := r.cfg.Gateway.Send(ctx, chat, gateway.Payload{Text: text, DisableWebPreview: true})
	if err != nil {
		r.logger.Warn().Err(err).Int64(log.FieldChatID, chat).Msg("reply failed")
	}
}

// eventFrom extracts the media attachment of a message, if any.
func eventFrom(msg *tgbotapi.Message, owner int64) (ingest.Event, bool) {
	ev := ingest.Event{
		OwnerID: owner,
		Source: gateway.MessageRef{
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
		},
	}
	switch {
	case msg.Document != nil:
		ev.FileID = msg.Document.FileID
		ev.FileUniqueID = msg.Document.FileUniqueID
		ev.FileName = msg.Document.FileName
		ev.FileSize = int64(msg.Document.FileSize)
		ev.MimeType = msg.Document.MimeType
	case msg.Video != nil:
		ev.FileID = msg.Video.FileID
		ev.FileUniqueID = msg.Video.FileUniqueID
		ev.FileName = msg.Video.FileName
		ev.FileSize = int64(msg.Video.FileSize)
		ev.MimeType = msg.Video.MimeType
	case msg.Audio != nil:
		ev.FileID = msg.Audio.FileID
		ev.FileUniqueID = msg.Audio.FileUniqueID
		ev.FileName = msg.Audio.FileName
		ev.FileSize = int64(msg.Audio.FileSize)
		ev.MimeType = msg.Audio.MimeType
	default:
		return ingest.Event{}, false
	}
	if ev.FileName == "" && msg.Caption != "" {
		ev.FileName = msg.Caption
	}
	return ev, ev.FileID != ""
}
