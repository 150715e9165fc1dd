// Package webhook receives Bot API updates over HTTP and routes them to the
// referral components.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/robalyx/sharegate/internal/referral"
	"github.com/robalyx/sharegate/internal/telegram"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrMalformedEvent is returned when an update body cannot be decoded.
var ErrMalformedEvent = errors.New("malformed event")

// Event kinds recorded on dispatch spans.
const (
	EventGenerate = "generate"
	EventStatus   = "status"
	EventCallback = "callback"
	EventJoin     = "join"
	EventIgnored  = "ignored"
)

// Messenger is the part of the Bot API used to reply to members.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	AnswerCallbackQuery(ctx context.Context, queryID, text string, showAlert bool) error
}

// Dispatcher classifies updates and hands them to the matching component.
type Dispatcher struct {
	referral      *referral.Service
	messenger     Messenger
	chatID        int64
	memberUpdates bool
	tracer        trace.Tracer
	logger        *zap.Logger
}

// NewDispatcher creates a Dispatcher for updates from chatID.
// When memberUpdates is set, joins are counted from chat_member updates and
// join service messages are ignored. Otherwise only service messages that
// carry an invite link are counted.
func NewDispatcher(
	svc *referral.Service, messenger Messenger, chatID int64, memberUpdates bool, logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		referral:      svc,
		messenger:     messenger,
		chatID:        chatID,
		memberUpdates: memberUpdates,
		tracer:        otel.Tracer("sharegate/webhook"),
		logger:        logger.Named("dispatcher"),
	}
}

// Dispatch decodes one update and handles it. Only decode failures are
// returned; everything past decoding is logged and acknowledged.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) error {
	var update telegram.Update
	if err := sonic.Unmarshal(body, &update); err != nil {
		d.logger.Warn("Received malformed update", zap.Error(err), zap.Int("size", len(body)))
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	kind := d.classify(&update)

	ctx, span := d.tracer.Start(ctx, "webhook.dispatch", trace.WithAttributes(
		attribute.Int64("update.id", update.UpdateID),
		attribute.String("update.kind", kind),
	))
	defer span.End()

	var err error

	switch kind {
	case EventGenerate:
		d.handleGenerate(ctx, update.CallbackQuery)
	case EventStatus:
		d.handleStatus(ctx, update.CallbackQuery)
	case EventCallback:
		d.answer(ctx, update.CallbackQuery.ID, "", false)
	case EventJoin:
		err = d.handleJoin(ctx, &update)
	default:
		d.logger.Debug("Ignoring update", zap.Int64("updateID", update.UpdateID))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("Failed to handle update",
			zap.Int64("updateID", update.UpdateID),
			zap.String("kind", kind),
			zap.Error(err))
	}

	return nil
}

// classify returns the event kind of an update.
func (d *Dispatcher) classify(update *telegram.Update) string {
	switch {
	case update.CallbackQuery != nil:
		data := update.CallbackQuery.Data
		switch {
		case data == referral.GenerateAction:
			return EventGenerate
		case strings.HasPrefix(data, referral.StatusPrefix):
			return EventStatus
		default:
			return EventCallback
		}
	case !d.memberUpdates && update.Message != nil &&
		len(update.Message.NewChatMembers) > 0 && update.Message.InviteLink != nil:
		return EventJoin
	case d.memberUpdates && update.ChatMember != nil &&
		update.ChatMember.IsJoin() && update.ChatMember.InviteLink != nil:
		return EventJoin
	default:
		return EventIgnored
	}
}

// handleGenerate issues an invite for the member who pressed the share button
// and sends it to them privately.
func (d *Dispatcher) handleGenerate(ctx context.Context, query *telegram.CallbackQuery) {
	member := referral.Member{
		ID:          query.From.ID,
		DisplayName: query.From.DisplayName(),
	}

	d.logger.Info("Invite requested", zap.Int64("memberID", member.ID))

	url, err := d.referral.Issuer.Generate(ctx, member)
	if err != nil {
		d.answer(ctx, query.ID, "Could not create the link. Make sure the bot is an admin in the group.", true)
		return
	}

	text := fmt.Sprintf("Your personal invite link is ready. Share it with %d people.\n\n%s\n\n"+
		"Once %d people join through this link the 'Open de instructions' button appears for you.",
		types.UnlockThreshold, url, types.UnlockThreshold)

	if _, err := d.messenger.SendMessage(ctx, member.ID, text, nil); err != nil {
		d.logger.Warn("Could not send invite link privately",
			zap.Int64("memberID", member.ID),
			zap.Error(err))
	}

	d.answer(ctx, query.ID, "I sent your personal link in a private message!", false)
}

// handleStatus answers with the progress of the referrer named in the callback data.
func (d *Dispatcher) handleStatus(ctx context.Context, query *telegram.CallbackQuery) {
	d.answer(ctx, query.ID, d.statusText(ctx, strings.TrimPrefix(query.Data, referral.StatusPrefix)), true)
}

// statusText describes the latest invite of the referrer with the given id.
func (d *Dispatcher) statusText(ctx context.Context, rawID string) string {
	const noData = "No data about this user."

	referrerID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return noData
	}

	invite, err := d.referral.Invites.LatestFor(ctx, referrerID)
	if err != nil {
		if !errors.Is(err, types.ErrInviteNotTracked) {
			d.logger.Error("Failed to load referrer status",
				zap.Int64("referrerID", referrerID),
				zap.Error(err))
		}
		return noData
	}

	name := invite.ReferrerName
	if name == "" {
		name = "user"
	}

	return fmt.Sprintf("%s has %d/%d referred.", name, invite.DisplayUses(), types.UnlockThreshold)
}

// handleJoin passes the invite link of a join in the community chat to the correlator.
func (d *Dispatcher) handleJoin(ctx context.Context, update *telegram.Update) error {
	var (
		chatID int64
		link   *telegram.ChatInviteLink
	)

	if update.Message != nil {
		chatID, link = update.Message.Chat.ID, update.Message.InviteLink
	} else {
		chatID, link = update.ChatMember.Chat.ID, update.ChatMember.InviteLink
	}

	if chatID != d.chatID {
		d.logger.Debug("Ignoring join in other chat", zap.Int64("chatID", chatID))
		return nil
	}

	d.logger.Info("Member joined through invite link", zap.String("token", link.InviteLink))

	return d.referral.Correlator.HandleJoin(ctx, link.InviteLink)
}

// answer acknowledges a callback query, logging failures.
func (d *Dispatcher) answer(ctx context.Context, queryID, text string, showAlert bool) {
	if err := d.messenger.AnswerCallbackQuery(ctx, queryID, text, showAlert); err != nil {
		d.logger.Warn("Failed to answer callback", zap.String("queryID", queryID), zap.Error(err))
	}
}
