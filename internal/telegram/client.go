package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// maxResponseSize caps how much of a Bot API reply is read.
const maxResponseSize = 1 << 20

// creatingMethods create a new object on every call. After a timeout or a 5xx
// the object may already exist, so these are only retried when the request
// is known not to have been executed.
var creatingMethods = map[string]bool{
	"createChatInviteLink": true,
	"sendMessage":          true,
}

// Options configures a Client.
type Options struct {
	// Bot API base URL, without trailing slash.
	APIURL string
	// Bot token.
	Token string
	// Timeout for a single HTTP attempt.
	Timeout time.Duration
	// Maximum retries for temporary failures.
	MaxRetries uint64
	// Initial retry delay.
	RetryDelay time.Duration
	// Maximum retry delay, also the longest retry_after that is honored.
	MaxRetryDelay time.Duration
}

// Client calls the Telegram Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	opts       Options
	logger     *zap.Logger
}

// NewClient creates a Bot API client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.APIURL, "/") + "/bot" + opts.Token,
		opts:       opts,
		logger:     logger.Named("telegram"),
	}
}

// envelope is the body of every Bot API reply.
type envelope[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// call posts params as JSON to method and decodes the result into T.
// Temporary failures are retried with exponential backoff, honoring retry_after.
// Methods in creatingMethods are only retried on rate limits and on
// connection failures that happened before the request was sent.
func call[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	var result T

	body, err := sonic.Marshal(params)
	if err != nil {
		return result, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.opts.RetryDelay),
		backoff.WithMaxInterval(c.opts.MaxRetryDelay),
	), c.opts.MaxRetries), ctx)

	err = backoff.Retry(func() error {
		var err error
		result, err = do[T](ctx, c, method, body)
		if err == nil {
			return nil
		}

		if !retryable(method, err) {
			return backoff.Permanent(err)
		}

		// Wait out the server-provided delay when it is reasonable
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			if apiErr.RetryAfter > c.opts.MaxRetryDelay {
				return backoff.Permanent(err)
			}

			c.logger.Warn("Rate limited by Bot API",
				zap.String("method", method),
				zap.Duration("retryAfter", apiErr.RetryAfter))

			if err := sleep(ctx, apiErr.RetryAfter); err != nil {
				return backoff.Permanent(err)
			}
		}

		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		c.logger.Debug("Retrying Bot API call", zap.String("method", method), zap.Error(err))

		return err
	}, b)

	return result, err
}

// retryable reports whether a failed call of method may be attempted again.
func retryable(method string, err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if !apiErr.Temporary() {
			return false
		}

		// A rate limited request was rejected before it was executed
		if apiErr.RetryAfter > 0 {
			return true
		}

		return !creatingMethods[method]
	}

	if !creatingMethods[method] {
		return true
	}

	return notSent(err)
}

// notSent reports whether err happened before the request reached the server.
func notSent(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// do performs a single HTTP attempt.
func do[T any](ctx context.Context, c *Client, method string, body []byte) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("failed to create %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Strip the URL since it contains the bot token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return zero, fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return zero, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var env envelope[T]
	if err := sonic.Unmarshal(data, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return zero, &APIError{Method: method, Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return zero, fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !env.OK {
		apiErr := &APIError{
			Method:      method,
			Code:        env.ErrorCode,
			Description: env.Description,
		}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return zero, apiErr
	}

	return env.Result, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CreateChatInviteLink creates an additional invite link for chatID.
func (c *Client) CreateChatInviteLink(
	ctx context.Context, chatID int64, name string, memberLimit int,
) (*ChatInviteLink, error) {
	link, err := call[*ChatInviteLink](ctx, c, "createChatInviteLink", map[string]any{
		"chat_id":      chatID,
		"name":         name,
		"member_limit": memberLimit,
	})
	if err != nil {
		return nil, err
	}

	if link == nil || link.InviteLink == "" {
		return nil, fmt.Errorf("createChatInviteLink: %w", ErrEmptyResult)
	}

	return link, nil
}

// SendMessage sends a text message with an optional inline keyboard.
func (c *Client) SendMessage(
	ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup,
) (*Message, error) {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		params["reply_markup"] = markup
	}

	msg, err := call[*Message](ctx, c, "sendMessage", params)
	if err != nil {
		return nil, err
	}

	if msg == nil {
		return nil, fmt.Errorf("sendMessage: %w", ErrEmptyResult)
	}

	return msg, nil
}

// EditMessageText replaces the text and keyboard of a message.
func (c *Client) EditMessageText(
	ctx context.Context, chatID int64, messageID int, text string, markup *InlineKeyboardMarkup,
) error {
	params := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if markup != nil {
		params["reply_markup"] = markup
	}

	// The result is either the edited message or true
	_, err := call[any](ctx, c, "editMessageText", params)

	return err
}

// PinChatMessage pins a message, silently when silent is set.
func (c *Client) PinChatMessage(ctx context.Context, chatID int64, messageID int, silent bool) error {
	_, err := call[bool](ctx, c, "pinChatMessage", map[string]any{
		"chat_id":              chatID,
		"message_id":           messageID,
		"disable_notification": silent,
	})

	return err
}

// AnswerCallbackQuery acknowledges a button press, optionally with a notice.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string, showAlert bool) error {
	params := map[string]any{
		"callback_query_id": queryID,
	}
	if text != "" {
		params["text"] = text
		params["show_alert"] = showAlert
	}

	_, err := call[bool](ctx, c, "answerCallbackQuery", params)

	return err
}

// SetWebhook registers webhookURL as the update endpoint for the given update types.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string, allowedUpdates []string) error {
	_, err := call[bool](ctx, c, "setWebhook", map[string]any{
		"url":             webhookURL,
		"allowed_updates": allowedUpdates,
	})

	return err
}
