package telegram

// Update is one inbound event pushed to the webhook.
type Update struct {
	UpdateID      int64              `json:"update_id"`
	Message       *Message           `json:"message,omitempty"`
	CallbackQuery *CallbackQuery     `json:"callback_query,omitempty"`
	ChatMember    *ChatMemberUpdated `json:"chat_member,omitempty"`
}

// AllowedUpdates lists the update types the service subscribes to.
// Joins are read from chat_member updates when memberUpdates is set and
// from service messages otherwise, never both.
func AllowedUpdates(memberUpdates bool) []string {
	if memberUpdates {
		return []string{"callback_query", "chat_member"}
	}

	return []string{"message", "callback_query"}
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}

	return u.FirstName + " " + u.LastName
}

// DisplayName prefers the username and falls back to the full name.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}

	return u.FullName()
}

// Chat is a private chat, group or channel.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// Message is a chat message, including service messages about new members.
type Message struct {
	MessageID      int             `json:"message_id"`
	From           *User           `json:"from,omitempty"`
	Chat           Chat            `json:"chat"`
	Date           int64           `json:"date"`
	Text           string          `json:"text,omitempty"`
	NewChatMembers []User          `json:"new_chat_members,omitempty"`
	InviteLink     *ChatInviteLink `json:"invite_link,omitempty"`
}

// CallbackQuery is a press on an inline keyboard button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// ChatInviteLink is an invite link created by the bot.
type ChatInviteLink struct {
	InviteLink  string `json:"invite_link"`
	Creator     *User  `json:"creator,omitempty"`
	Name        string `json:"name,omitempty"`
	MemberLimit int    `json:"member_limit,omitempty"`
	IsPrimary   bool   `json:"is_primary,omitempty"`
	IsRevoked   bool   `json:"is_revoked,omitempty"`
}

// Chat member statuses.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

// ChatMember is the membership state of a user in a chat.
type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
	// Only set for restricted members, whose status alone does not say
	// whether they are in the chat.
	IsMember bool `json:"is_member,omitempty"`
}

// InChat reports whether the member is currently part of the chat.
func (m *ChatMember) InChat() bool {
	switch m.Status {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	case StatusRestricted:
		return m.IsMember
	default:
		return false
	}
}

// ChatMemberUpdated reports a membership change, with the invite link
// used when the user joined through one.
type ChatMemberUpdated struct {
	Chat          Chat            `json:"chat"`
	From          User            `json:"from"`
	Date          int64           `json:"date"`
	OldChatMember ChatMember      `json:"old_chat_member"`
	NewChatMember ChatMember      `json:"new_chat_member"`
	InviteLink    *ChatInviteLink `json:"invite_link,omitempty"`
}

// IsJoin reports whether the update moves a user from outside the chat to inside it.
func (c *ChatMemberUpdated) IsJoin() bool {
	return !c.OldChatMember.InChat() && c.NewChatMember.InChat()
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is either a callback button or a URL button.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// CallbackButton builds a button that sends data back to the bot.
func CallbackButton(text, data string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackData: data}
}

// URLButton builds a button that opens a link.
func URLButton(text, url string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, URL: url}
}
