package voice

// voiceStateUpdateOp is the gateway opcode for a voice state update.
const voiceStateUpdateOp = 4

// StateEnvelope is the desired-state message published to the outer
// gateway connection whenever the handler's intent changes.
type StateEnvelope struct {
	Op   int          `json:"op"`
	Data StatePayload `json:"d"`
}

// StatePayload is the body of a StateEnvelope. ChannelID nil asks the
// gateway to disconnect the user from voice.
type StatePayload struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

// Sink is the outer signaling connection the handler publishes desired
// state to. Delivery is fire and forget; errors are logged and dropped.
type Sink interface {
	SendStateUpdate(env StateEnvelope) error
}
