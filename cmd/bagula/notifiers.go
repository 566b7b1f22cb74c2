package main

import (
	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/notify"
	"github.com/bagula/platform/internal/notify/discord"
	"github.com/bagula/platform/internal/notify/slack"
)

// buildFanout constructs the notification fan-out from config. Channels with
// no token configured are simply absent; an empty fan-out is valid and sends
// nothing.
func buildFanout(cfg *config.Config) (*notify.Fanout, error) {
	var notifiers []notify.Notifier

	if cfg.Notify.SlackToken != "" && cfg.Notify.SlackChannel != "" {
		n, err := slack.New(slack.Opts{
			Token:     cfg.Notify.SlackToken,
			ChannelID: cfg.Notify.SlackChannel,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	if cfg.Notify.DiscordToken != "" && cfg.Notify.DiscordChannel != "" {
		n, err := discord.New(discord.Opts{
			Token:     cfg.Notify.DiscordToken,
			ChannelID: cfg.Notify.DiscordChannel,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	return notify.NewFanout(notifiers...), nil
}
