// Package slack implements the notify.Notifier interface for Slack.
package slack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bagula/platform/internal/notify"
	slackapi "github.com/slack-go/slack"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts opportunity events to a Slack channel.
type Notifier struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	Token     string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}

	n := &Notifier{channelID: opts.ChannelID, client: opts.Client}
	if n.client == nil {
		n.client = slackapi.New(opts.Token)
	}
	return n, nil
}

// Send posts the event as a Block Kit attachment, retrying on rate limits.
func (n *Notifier) Send(ctx context.Context, ev notify.Event) error {
	att := slackapi.Attachment{
		Title:    ev.Title,
		Text:     ev.Body,
		Color:    ev.Color,
		Fallback: ev.Title,
	}
	for _, f := range ev.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}

	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := n.client.PostMessageContext(ctx, n.channelID,
			slackapi.MsgOptionText(ev.Title, false),
			slackapi.MsgOptionAttachments(att),
		)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close implements notify.Notifier. The Web API client holds no connection.
func (n *Notifier) Close() error { return nil }

// retryOnRateLimit retries fn when Slack reports a rate limit, honoring the
// server-provided retry delay.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rle.RetryAfter):
		}
	}
	return err
}
