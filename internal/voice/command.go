package voice

import "io"

// ConnectionInfo bundles everything the worker needs to open a voice
// transport connection. It is only ever built once endpoint, session id
// and token are all known.
type ConnectionInfo struct {
	Endpoint  string
	GuildID   string
	SessionID string
	Token     string
	UserID    string
}

// Command is a message delivered to the voice worker. The concrete types
// below are the only implementations.
type Command interface {
	isCommand()
}

// Connect tells the worker to open a transport connection.
type Connect struct {
	Info ConnectionInfo
}

// Disconnect tells the worker to close the current transport connection.
type Disconnect struct{}

// SetReceiver installs or, with a nil Receiver, removes the inbound audio
// receiver.
type SetReceiver struct {
	Receiver Receiver
}

// AddSender attaches one more playing source.
type AddSender struct {
	Player *Player
}

// SetSender replaces every attached source with the given one. A nil
// Player stops all playback.
type SetSender struct {
	Player *Player
}

// SetBitrate applies a new encoder bitrate to the active connection.
type SetBitrate struct {
	Bitrate Bitrate
}

// Mute applies or lifts the server-side mute on the active connection.
type Mute struct {
	Mute bool
}

func (Connect) isCommand()     {}
func (Disconnect) isCommand()  {}
func (SetReceiver) isCommand() {}
func (AddSender) isCommand()   {}
func (SetSender) isCommand()   {}
func (SetBitrate) isCommand()  {}
func (Mute) isCommand()        {}

// BitrateMode selects how the encoder output rate is chosen.
type BitrateMode int

const (
	// BitrateModeBits uses the explicit Bits value.
	BitrateModeBits BitrateMode = iota
	// BitrateModeAuto lets the encoder pick a rate.
	BitrateModeAuto
	// BitrateModeMax asks for the highest rate the encoder supports.
	BitrateModeMax
)

// Bitrate is the desired encoder output rate. The default rate is 128 kbps;
// sensible explicit values range between 512 and 512000 bits per second.
type Bitrate struct {
	Mode BitrateMode
	Bits uint32
}

// BitrateBits returns an explicit bitrate of n bits per second.
func BitrateBits(n uint32) Bitrate {
	return Bitrate{Mode: BitrateModeBits, Bits: n}
}

// BitrateAuto returns the automatic bitrate setting.
func BitrateAuto() Bitrate {
	return Bitrate{Mode: BitrateModeAuto}
}

// BitrateMax returns the maximum bitrate setting.
func BitrateMax() Bitrate {
	return Bitrate{Mode: BitrateModeMax}
}

// Source supplies raw PCM audio for playback. The worker reads frames from
// it and closes it when playback ends.
type Source interface {
	io.Reader
	io.Closer
}

// Receiver consumes inbound audio from the worker. Most bots do not need
// one.
type Receiver interface {
	// SpeakingUpdate reports that the user owning the given ssrc started
	// or stopped speaking.
	SpeakingUpdate(ssrc uint32, userID string, speaking bool)

	// VoicePacket delivers one inbound opus frame.
	VoicePacket(ssrc uint32, sequence uint16, timestamp uint32, opus []byte)
}

// StateUpdate is the guild-broadcast voice state event that drives
// Handler.UpdateState. ChannelID empty means the user left voice.
type StateUpdate struct {
	UserID    string
	ChannelID string
	SessionID string
}
