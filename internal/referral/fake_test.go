package referral_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/robalyx/sharegate/internal/database"
	"github.com/robalyx/sharegate/internal/database/dbtest"
	"github.com/robalyx/sharegate/internal/referral"
	"github.com/robalyx/sharegate/internal/telegram"
	"go.uber.org/zap"
)

const (
	testChatID      = int64(-100500)
	testPrivateLink = "https://t.me/+private"
)

var errPlatform = errors.New("platform unavailable")

type sentMessage struct {
	ChatID int64
	Text   string
	Markup *telegram.InlineKeyboardMarkup
}

type editedMessage struct {
	MessageID int
	Markup    *telegram.InlineKeyboardMarkup
}

// fakePlatform records Bot API calls in memory.
type fakePlatform struct {
	mu sync.Mutex

	nextMessageID int
	nextLink      int

	createErr error
	editErr   error
	sendErr   error
	dmErr     error

	// dmFailures fails that many upcoming private messages with errPlatform.
	dmFailures int

	links  []string
	sent   []sentMessage
	edits  []editedMessage
	pinned []int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{nextMessageID: 1000}
}

func (f *fakePlatform) CreateChatInviteLink(
	_ context.Context, chatID int64, name string, memberLimit int,
) (*telegram.ChatInviteLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	f.nextLink++
	url := fmt.Sprintf("https://t.me/+link%d", f.nextLink)
	f.links = append(f.links, name)

	return &telegram.ChatInviteLink{InviteLink: url, Name: name, MemberLimit: memberLimit}, nil
}

func (f *fakePlatform) SendMessage(
	_ context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup,
) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if chatID == testChatID && f.sendErr != nil {
		return nil, f.sendErr
	}
	if chatID != testChatID && f.dmErr != nil {
		return nil, f.dmErr
	}
	if chatID != testChatID && f.dmFailures > 0 {
		f.dmFailures--
		return nil, errPlatform
	}

	f.nextMessageID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})

	return &telegram.Message{MessageID: f.nextMessageID, Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakePlatform) EditMessageText(
	_ context.Context, _ int64, messageID int, _ string, markup *telegram.InlineKeyboardMarkup,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.editErr != nil {
		return f.editErr
	}

	f.edits = append(f.edits, editedMessage{MessageID: messageID, Markup: markup})

	return nil
}

func (f *fakePlatform) PinChatMessage(_ context.Context, _ int64, messageID int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pinned = append(f.pinned, messageID)

	return nil
}

// groupMessages returns messages sent to the community chat.
func (f *fakePlatform) groupMessages() []sentMessage {
	return f.filter(func(m sentMessage) bool { return m.ChatID == testChatID })
}

// directMessages returns messages sent to chatID privately.
func (f *fakePlatform) directMessages(chatID int64) []string {
	var texts []string
	for _, m := range f.filter(func(m sentMessage) bool { return m.ChatID == chatID }) {
		texts = append(texts, m.Text)
	}
	return texts
}

func (f *fakePlatform) filter(keep func(sentMessage) bool) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []sentMessage
	for _, m := range f.sent {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakePlatform) lastEdit() editedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.edits[len(f.edits)-1]
}

func (f *fakePlatform) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.edits)
}

// newService wires a referral service over a fresh database and a fake platform.
func newService(t *testing.T) (*referral.Service, *fakePlatform, database.Client) {
	t.Helper()

	db := dbtest.Open(t)
	platform := newFakePlatform()

	svc := referral.New(
		platform,
		db.Model().Invite(),
		db.Model().Meta(),
		referral.NewLocalLocker(),
		referral.Settings{ChatID: testChatID, PrivateLink: testPrivateLink},
		zap.NewNop(),
	)

	return svc, platform, db
}

// buttonTexts flattens a keyboard into its button labels.
func buttonTexts(markup *telegram.InlineKeyboardMarkup) []string {
	var texts []string
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			texts = append(texts, button.Text)
		}
	}
	return texts
}
