package discord

import (
	"context"
	"net/http"
	"testing"

	"github.com/bagula/platform/internal/notify"
	"github.com/bwmarrin/discordgo"
)

type mockSession struct {
	calls     int
	lastData  *discordgo.MessageSend
	failUntil int
	closed    bool
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.calls++
	m.lastData = data
	if m.calls <= m.failUntil {
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: 429}}
	}
	return &discordgo.Message{ID: "1", ChannelID: channelID}, nil
}

func (m *mockSession) Close() error {
	m.closed = true
	return nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "C1"}); err == nil {
		t.Error("expected error without token or session")
	}
	if _, err := New(Opts{Session: &mockSession{}}); err == nil {
		t.Error("expected error without channel")
	}
}

func TestSend_BuildsEmbed(t *testing.T) {
	sess := &mockSession{}
	n, err := New(Opts{Session: sess, ChannelID: "C1"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ev := notify.Event{
		Title: "[high] Failing tool",
		Body:  "search fails 67% of the time",
		Color: "#e01e5a",
		Fields: []notify.Field{
			{Name: "Agent", Value: "support-bot", Short: true},
		},
	}
	if err := n.Send(context.Background(), ev); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(sess.lastData.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(sess.lastData.Embeds))
	}
	embed := sess.lastData.Embeds[0]
	if embed.Title != ev.Title || embed.Description != ev.Body {
		t.Errorf("embed = %+v", embed)
	}
	if embed.Color != 0xe01e5a {
		t.Errorf("Color = %#x, want 0xe01e5a", embed.Color)
	}
	if len(embed.Fields) != 1 || !embed.Fields[0].Inline {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestSend_RetriesRateLimit(t *testing.T) {
	sess := &mockSession{failUntil: 2}
	n, _ := New(Opts{Session: sess, ChannelID: "C1"})

	if err := n.Send(context.Background(), notify.Event{Title: "t"}); err != nil {
		t.Fatalf("send after retries: %v", err)
	}
	if sess.calls != 3 {
		t.Errorf("calls = %d, want 3", sess.calls)
	}
}

func TestClose(t *testing.T) {
	sess := &mockSession{}
	n, _ := New(Opts{Session: sess, ChannelID: "C1"})
	if err := n.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if !sess.closed {
		t.Error("session not closed")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"e01e5a", 0xe01e5a},
		{"#FFF", 0xfff},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
