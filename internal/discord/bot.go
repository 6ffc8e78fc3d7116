package discord

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"voicegate/internal/config"
	"voicegate/internal/storage"
	"voicegate/internal/voice"
)

// Bot is a Discord bot exposing the voice coordinator through a handful
// of mention commands.
type Bot struct {
	dg      *discordgo.Session
	cfg     *config.Config
	storage *storage.Storage
	voice   *voice.Manager
}

// StartBot starts the Discord bot
func StartBot(ctx context.Context, cfg *config.Config, storage *storage.Storage) error {
	b := &Bot{
		cfg:     cfg,
		storage: storage,
	}
	if err := b.run(ctx, cfg.DiscordToken); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

// run starts the Discord bot
func (b *Bot) run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.dg = dg
	b.voice = voice.NewManager("", &sessionSink{dg: dg}, nil)

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onVoiceServerUpdate)
	dg.AddHandler(b.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	b.voice.Close()
	return nil
}

// configureIntents configures the Discord intents
func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.voice.SetUserID(s.State.User.ID)
	log.Printf("[INFO] Logged in as %s", s.State.User.Username)
}

// onVoiceServerUpdate feeds voice server credentials into the manager.
// The endpoint may be empty while the voice server reallocates.
func (b *Bot) onVoiceServerUpdate(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	b.voice.ServerUpdate(e.GuildID, e.Endpoint, e.Token)
}

// onVoiceStateUpdate feeds voice state changes into the manager. Events
// for other users are filtered inside the handler.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	b.voice.StateUpdate(e.GuildID, voice.StateUpdate{
		UserID:    e.UserID,
		ChannelID: e.ChannelID,
		SessionID: e.SessionID,
	})
}

// onMessageCreate dispatches mention commands
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.GuildID == "" {
		return
	}

	mentioned := false
	for _, user := range m.Mentions {
		if user.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}
	if !mentioned {
		return
	}

	var reply string
	switch command(m.Content) {
	case "join":
		reply = b.handleJoin(m.GuildID, m.Author.ID)
	case "leave":
		b.voice.Leave(m.GuildID)
		reply = "Left voice."
	case "mute":
		reply = b.handleMute(m.GuildID, true)
	case "unmute":
		reply = b.handleMute(m.GuildID, false)
	case "deafen":
		reply = b.handleDeafen(m.GuildID, true)
	case "undeafen":
		reply = b.handleDeafen(m.GuildID, false)
	case "stop":
		if h, ok := b.voice.Get(m.GuildID); ok {
			h.Stop()
		}
		reply = "Playback stopped."
	default:
		return
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		log.Println("[ERR] Failed to send reply:", err)
	}
}

// command extracts the first word after the mention, lowercased.
func command(content string) string {
	for _, field := range strings.Fields(content) {
		if strings.HasPrefix(field, "<@") {
			continue
		}
		return strings.ToLower(field)
	}
	return ""
}

// handleJoin joins the invoking user's voice channel, seeding the
// handler with the guild's persisted voice settings.
func (b *Bot) handleJoin(guildID, userID string) string {
	vs, err := b.findUserVoiceState(guildID, userID)
	if err != nil {
		return "You need to be in a voice channel."
	}

	settings, err := b.storage.GetVoiceSettings(guildID)
	if err != nil {
		log.Println("[ERR] Failed to load voice settings:", err)
	}

	h := b.voice.Handler(guildID)

	// Settings first: with no channel joined yet these are recorded
	// silently, and the join publish below carries them.
	h.Deafen(settings.SelfDeaf)
	h.Mute(settings.SelfMute)
	h.Join(vs.ChannelID)
	if settings.Bitrate > 0 {
		h.SetBitrate(voice.BitrateBits(settings.Bitrate))
	}

	return "Joined your voice channel."
}

func (b *Bot) handleMute(guildID string, mute bool) string {
	b.voice.Handler(guildID).Mute(mute)
	b.saveSettings(guildID)
	if mute {
		return "Muted."
	}
	return "Unmuted."
}

func (b *Bot) handleDeafen(guildID string, deaf bool) string {
	b.voice.Handler(guildID).Deafen(deaf)
	b.saveSettings(guildID)
	if deaf {
		return "Deafened."
	}
	return "Undeafened."
}

func (b *Bot) saveSettings(guildID string) {
	h := b.voice.Handler(guildID)

	settings, err := b.storage.GetVoiceSettings(guildID)
	if err != nil {
		log.Println("[ERR] Failed to load voice settings:", err)
		return
	}
	settings.SelfDeaf = h.SelfDeaf()
	settings.SelfMute = h.SelfMute()

	if err := b.storage.SetVoiceSettings(guildID, settings); err != nil {
		log.Println("[ERR] Failed to save voice settings:", err)
	}
}

// findUserVoiceState finds the voice state of a user
func (b *Bot) findUserVoiceState(guildID, userID string) (*discordgo.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs, nil
		}
	}
	return nil, fmt.Errorf("user not in any voice channel")
}
