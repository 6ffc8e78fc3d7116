// Package voice coordinates one voice session per guild: it tracks the
// credential triple (endpoint, session id, token) needed to open a voice
// transport connection, decides when enough of it is known to attempt
// one, and relays lifecycle commands to the worker that owns the live
// connection. The worker and the outer gateway connection are external
// collaborators reached through the Worker and Sink interfaces.
package voice

import (
	"log"
	"sync"
)

// Handler handles a single guild's voice session, acting as a clean API
// above the worker connection. All methods are safe for concurrent use
// and never block: they mutate local state, enqueue worker commands and
// fire desired-state updates at the gateway without waiting on either.
type Handler struct {
	mu sync.Mutex

	guildID string
	userID  string

	// channelID is set exactly while a connection is desired.
	channelID string
	endpoint  string
	sessionID string
	token     string

	selfDeaf bool
	selfMute bool

	cmds  *Sender
	spawn SpawnFunc

	// sink is nil for standalone handlers; desired-state publishing is
	// then skipped while everything else still happens.
	sink Sink

	closed    bool
	closeOnce sync.Once
}

// New creates a Handler wired to the given gateway sink. A nil spawn
// falls back to a worker that only logs commands.
func New(guildID, userID string, sink Sink, spawn SpawnFunc) *Handler {
	return newRaw(guildID, userID, sink, spawn)
}

// Standalone creates a Handler with no gateway sink. State transitions
// and worker commands still happen; only the outer publish is skipped,
// so joining, muting and switching channels must be signaled to the
// gateway by some other means.
func Standalone(guildID, userID string, spawn SpawnFunc) *Handler {
	return newRaw(guildID, userID, nil, spawn)
}

func newRaw(guildID, userID string, sink Sink, spawn SpawnFunc) *Handler {
	if spawn == nil {
		spawn = defaultSpawn
	}

	tx, rx := newPipe()
	spawn(guildID, rx)

	return &Handler{
		guildID: guildID,
		userID:  userID,
		cmds:    tx,
		spawn:   spawn,
		sink:    sink,
	}
}

// GuildID returns the guild this handler belongs to.
func (h *Handler) GuildID() string {
	return h.guildID
}

// ChannelID returns the currently desired voice channel, or "" when no
// connection is desired.
func (h *Handler) ChannelID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channelID
}

// SelfDeaf reports whether the handler is set to deafen the connection.
func (h *Handler) SelfDeaf() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selfDeaf
}

// SelfMute reports whether the handler is set to mute the connection.
func (h *Handler) SelfMute() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selfMute
}

// Join connects to the given voice channel. The actual transport is
// opened later, once the gateway answers with the session credentials.
func (h *Handler) Join(channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.channelID = channelID
	h.update()
}

// Leave disconnects from the current voice channel. Settings such as
// self-deaf and self-mute are kept for the next join. Calling Leave
// while not in a channel does nothing.
func (h *Handler) Leave() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave()
}

func (h *Handler) leave() {
	if h.channelID == "" {
		return
	}

	h.channelID = ""
	h.send(Disconnect{})
	h.update()
}

// Deafen sets whether the connection is deafened. Without a current
// channel this only records the setting for future connections; deafness
// is signaling-only, so no worker command is involved either way.
func (h *Handler) Deafen(deaf bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.selfDeaf = deaf

	if h.channelID != "" {
		h.update()
	}
}

// Mute sets whether the connection is muted. Unlike Deafen this also
// needs the worker to stop or resume sending, so a Mute command follows
// the gateway update.
func (h *Handler) Mute(mute bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.selfMute = mute

	if h.channelID != "" {
		h.update()
		h.send(Mute{Mute: mute})
	}
}

// SwitchTo moves to another voice channel of the same guild. Switching
// to the channel already joined does nothing; the live connection is
// reused across the switch, so no reconnect command is issued.
func (h *Handler) SwitchTo(channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channelID == channelID {
		return
	}

	h.channelID = channelID
	h.update()
}

// SetBitrate asks the worker to re-tune the encoder output rate.
func (h *Handler) SetBitrate(b Bitrate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send(SetBitrate{Bitrate: b})
}

// Listen installs a receiver for inbound audio, or removes the current
// one when r is nil.
func (h *Handler) Listen(r Receiver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send(SetReceiver{Receiver: r})
}

// Play starts playing src alongside any sources already attached.
func (h *Handler) Play(src Source) {
	h.PlayReturning(src)
}

// PlayReturning starts playing src and returns the shared player handle
// for external control.
func (h *Handler) PlayReturning(src Source) *Player {
	h.mu.Lock()
	defer h.mu.Unlock()

	player := NewPlayer(src)
	h.send(AddSender{Player: player})
	return player
}

// PlayOnly plays src after detaching every other source.
func (h *Handler) PlayOnly(src Source) *Player {
	h.mu.Lock()
	defer h.mu.Unlock()

	player := NewPlayer(src)
	h.send(SetSender{Player: player})
	return player
}

// Stop stops all playback.
func (h *Handler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send(SetSender{})
}

// Connect attempts to open the transport connection. It reports false
// without doing anything unless endpoint, session id and token are all
// known; UpdateServer and UpdateState call it automatically the moment
// the triple completes. There is no connected-state tracking: every call
// with a complete triple forwards a fresh Connect to the worker.
func (h *Handler) Connect() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connect()
}

func (h *Handler) connect() bool {
	if h.endpoint == "" || h.sessionID == "" || h.token == "" {
		return false
	}

	h.send(Connect{Info: ConnectionInfo{
		Endpoint:  h.endpoint,
		GuildID:   h.guildID,
		SessionID: h.sessionID,
		Token:     h.token,
		UserID:    h.userID,
	}})

	return true
}

// UpdateServer records the voice server data from a server-update event.
// The token is always recorded; with an endpoint present a connect is
// attempted as soon as the session id is also known, while an absent
// endpoint is treated as an instruction to leave.
func (h *Handler) UpdateServer(endpoint, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.token = token

	if endpoint == "" {
		h.leave()
		return
	}

	h.endpoint = endpoint

	if h.sessionID != "" {
		h.connect()
	}
}

// UpdateState records the session id from a voice state event. State
// events are broadcast for every user in the guild, so events for other
// users are ignored. With a channel present a connect is attempted as
// soon as endpoint and token are also known.
func (h *Handler) UpdateState(st StateUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if st.UserID != h.userID {
		return
	}

	h.channelID = st.ChannelID

	if st.ChannelID == "" {
		// Already cleared above, so this never emits a Disconnect; the
		// gateway told us we are out, there is nothing left to tear down.
		h.leave()
		return
	}

	h.sessionID = st.SessionID

	if h.endpoint != "" && h.token != "" {
		h.connect()
	}
}

// Close leaves the current channel, if any, and shuts the worker down.
// It is safe to call more than once; the leave sequence runs exactly
// once and worker shutdown is not waited for.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		h.leave()
		h.closed = true
		h.cmds.Close()
	})
	return nil
}

// send enqueues cmd for the current worker. When the worker died it
// installs a fresh pipe, re-enqueues cmd there, spawns a replacement and
// republishes desired state, so no command is ever lost. A failure of
// the replacement surfaces only on the next send.
func (h *Handler) send(cmd Command) {
	if h.closed {
		return
	}

	if err := h.cmds.Send(cmd); err == nil {
		return
	}

	log.Printf("[Voice] Guild %s: worker gone, respawning", h.guildID)

	tx, rx := newPipe()
	h.cmds = tx

	// A fresh pipe with no consumer yet cannot reject a send.
	if err := tx.Send(cmd); err != nil {
		log.Printf("[Voice] Guild %s: resend on fresh pipe failed: %v", h.guildID, err)
	}

	h.spawn(h.guildID, rx)
	h.update()
}

// update publishes the desired voice state to the gateway sink. It is
// best effort: standalone handlers skip it and send errors are dropped,
// the gateway's own health monitoring handles recovery.
func (h *Handler) update() {
	if h.sink == nil {
		return
	}

	payload := StatePayload{
		GuildID:  h.guildID,
		SelfMute: h.selfMute,
		SelfDeaf: h.selfDeaf,
	}
	if h.channelID != "" {
		channelID := h.channelID
		payload.ChannelID = &channelID
	}

	env := StateEnvelope{Op: voiceStateUpdateOp, Data: payload}
	if err := h.sink.SendStateUpdate(env); err != nil {
		log.Printf("[Voice] Guild %s: state update dropped: %v", h.guildID, err)
	}
}
