package discord

import (
	"github.com/bwmarrin/discordgo"

	"voicegate/internal/voice"
)

// sessionSink publishes desired voice state through an open discordgo
// session. ChannelVoiceJoinManual sends exactly the op 4 voice state
// update the envelope describes; an empty channel id disconnects.
type sessionSink struct {
	dg *discordgo.Session
}

func (s *sessionSink) SendStateUpdate(env voice.StateEnvelope) error {
	channelID := ""
	if env.Data.ChannelID != nil {
		channelID = *env.Data.ChannelID
	}
	return s.dg.ChannelVoiceJoinManual(env.Data.GuildID, channelID, env.Data.SelfMute, env.Data.SelfDeaf)
}
