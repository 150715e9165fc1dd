package webhook_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/robalyx/sharegate/internal/database"
	"github.com/robalyx/sharegate/internal/database/dbtest"
	"github.com/robalyx/sharegate/internal/referral"
	"github.com/robalyx/sharegate/internal/telegram"
	"github.com/robalyx/sharegate/internal/webhook"
	"go.uber.org/zap"
)

const (
	testChatID      = int64(-100500)
	testPrivateLink = "https://t.me/+private"
)

type answer struct {
	QueryID   string
	Text      string
	ShowAlert bool
}

type message struct {
	ChatID int64
	Text   string
}

// fakeBot implements every Bot API call the service makes.
type fakeBot struct {
	mu sync.Mutex

	createErr error
	nextID    int

	answers  []answer
	messages []message
	edits    int
}

func (f *fakeBot) CreateChatInviteLink(
	_ context.Context, _ int64, name string, memberLimit int,
) (*telegram.ChatInviteLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	f.nextID++
	return &telegram.ChatInviteLink{
		InviteLink:  fmt.Sprintf("https://t.me/+invite%d", f.nextID),
		Name:        name,
		MemberLimit: memberLimit,
	}, nil
}

func (f *fakeBot) SendMessage(
	_ context.Context, chatID int64, text string, _ *telegram.InlineKeyboardMarkup,
) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.messages = append(f.messages, message{ChatID: chatID, Text: text})

	return &telegram.Message{MessageID: f.nextID, Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeBot) EditMessageText(context.Context, int64, int, string, *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits++
	return nil
}

func (f *fakeBot) PinChatMessage(context.Context, int64, int, bool) error {
	return nil
}

func (f *fakeBot) AnswerCallbackQuery(_ context.Context, queryID, text string, showAlert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.answers = append(f.answers, answer{QueryID: queryID, Text: text, ShowAlert: showAlert})
	return nil
}

func (f *fakeBot) lastAnswer() answer {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.answers[len(f.answers)-1]
}

func (f *fakeBot) messagesTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var texts []string
	for _, m := range f.messages {
		if m.ChatID == chatID {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

type fixture struct {
	bot        *fakeBot
	db         database.Client
	service    *referral.Service
	dispatcher *webhook.Dispatcher
}

// newFixture wires a dispatcher over a fresh database and a fake bot.
func newFixture(t *testing.T, memberUpdates bool) *fixture {
	t.Helper()

	bot := &fakeBot{}
	db := dbtest.Open(t)

	svc := referral.New(
		bot,
		db.Model().Invite(),
		db.Model().Meta(),
		referral.NewLocalLocker(),
		referral.Settings{ChatID: testChatID, PrivateLink: testPrivateLink},
		zap.NewNop(),
	)

	return &fixture{
		bot:        bot,
		db:         db,
		service:    svc,
		dispatcher: webhook.NewDispatcher(svc, bot, testChatID, memberUpdates, zap.NewNop()),
	}
}
