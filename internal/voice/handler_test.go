package voice

import (
	"sync"
	"testing"
)

// recordSink captures published desired-state envelopes.
type recordSink struct {
	mu     sync.Mutex
	envs   []StateEnvelope
	err    error
	onSend func(env StateEnvelope)
}

func (s *recordSink) SendStateUpdate(env StateEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if s.onSend != nil {
		s.onSend(env)
	}
	s.envs = append(s.envs, env)
	return nil
}

func (s *recordSink) sent() []StateEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StateEnvelope, len(s.envs))
	copy(out, s.envs)
	return out
}

func (s *recordSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = nil
}

// spawnRecorder keeps every inbox handed to spawn without consuming it,
// so tests can inspect queued commands directly.
type spawnRecorder struct {
	mu      sync.Mutex
	inboxes []*Inbox
}

func (r *spawnRecorder) spawn(guildID string, in *Inbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inboxes = append(r.inboxes, in)
}

func (r *spawnRecorder) current() *Inbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inboxes[len(r.inboxes)-1]
}

func (r *spawnRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inboxes)
}

const (
	testGuild   = "81384788765712384"
	testUser    = "201635344373907456"
	testChannel = "85482585546833920"
)

func newTestHandler(t *testing.T) (*Handler, *recordSink, *spawnRecorder) {
	t.Helper()
	sink := &recordSink{}
	rec := &spawnRecorder{}
	h := New(testGuild, testUser, sink, rec.spawn)
	return h, sink, rec
}

func TestLeaveIsIdempotent(t *testing.T) {
	h, sink, rec := newTestHandler(t)

	h.Join(testChannel)
	sink.reset()

	h.Leave()
	h.Leave()

	if got := h.ChannelID(); got != "" {
		t.Errorf("channel id after leave = %q, want empty", got)
	}

	cmds := rec.current().pending()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want exactly one Disconnect", len(cmds))
	}
	if _, ok := cmds[0].(Disconnect); !ok {
		t.Errorf("got command %T, want Disconnect", cmds[0])
	}
	if got := len(sink.sent()); got != 1 {
		t.Errorf("got %d publishes, want 1", got)
	}
}

func TestConnectRequiresFullTriple(t *testing.T) {
	tests := []struct {
		name                       string
		endpoint, sessionID, token bool
	}{
		{name: "none"},
		{name: "endpoint only", endpoint: true},
		{name: "session only", sessionID: true},
		{name: "token only", token: true},
		{name: "endpoint and session", endpoint: true, sessionID: true},
		{name: "endpoint and token", endpoint: true, token: true},
		{name: "session and token", sessionID: true, token: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, rec := newTestHandler(t)

			if tt.endpoint {
				h.endpoint = "ep"
			}
			if tt.sessionID {
				h.sessionID = "sid"
			}
			if tt.token {
				h.token = "tok"
			}

			if h.Connect() {
				t.Error("Connect() = true, want false")
			}
			if got := len(rec.current().pending()); got != 0 {
				t.Errorf("got %d commands, want none", got)
			}
		})
	}

	t.Run("full triple", func(t *testing.T) {
		h, _, rec := newTestHandler(t)
		h.endpoint = "ep"
		h.sessionID = "sid"
		h.token = "tok"

		if !h.Connect() {
			t.Fatal("Connect() = false, want true")
		}

		cmds := rec.current().pending()
		if len(cmds) != 1 {
			t.Fatalf("got %d commands, want 1", len(cmds))
		}
		conn, ok := cmds[0].(Connect)
		if !ok {
			t.Fatalf("got command %T, want Connect", cmds[0])
		}
		want := ConnectionInfo{
			Endpoint:  "ep",
			GuildID:   testGuild,
			SessionID: "sid",
			Token:     "tok",
			UserID:    testUser,
		}
		if conn.Info != want {
			t.Errorf("connection info = %+v, want %+v", conn.Info, want)
		}
	})
}

func TestServerUpdateConnectsWithoutDedup(t *testing.T) {
	h, _, rec := newTestHandler(t)
	h.sessionID = "sid"

	h.UpdateServer("ep", "tok")
	h.UpdateServer("ep", "tok")

	cmds := rec.current().pending()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	for i, cmd := range cmds {
		if _, ok := cmd.(Connect); !ok {
			t.Errorf("command %d is %T, want Connect", i, cmd)
		}
	}
}

func TestStateUpdateIgnoresOtherUsers(t *testing.T) {
	h, sink, rec := newTestHandler(t)
	h.Join(testChannel)
	sink.reset()

	h.UpdateState(StateUpdate{UserID: "somebody-else", ChannelID: "", SessionID: "sid"})

	if got := h.ChannelID(); got != testChannel {
		t.Errorf("channel id = %q, want %q", got, testChannel)
	}
	if h.sessionID != "" {
		t.Errorf("session id = %q, want empty", h.sessionID)
	}
	if got := len(rec.current().pending()); got != 0 {
		t.Errorf("got %d commands, want none", got)
	}
	if got := len(sink.sent()); got != 0 {
		t.Errorf("got %d publishes, want none", got)
	}
}

func TestSendRespawnsAndKeepsCommand(t *testing.T) {
	h, sink, rec := newTestHandler(t)

	// Worker death: the consumer closes its inbox on exit.
	rec.current().Close()
	sink.reset()

	h.SetBitrate(BitrateBits(64000))

	if got := rec.count(); got != 2 {
		t.Fatalf("got %d spawned workers, want 2", got)
	}

	cmds := rec.current().pending()
	if len(cmds) != 1 {
		t.Fatalf("replacement inbox has %d commands, want 1", len(cmds))
	}
	sb, ok := cmds[0].(SetBitrate)
	if !ok {
		t.Fatalf("got command %T, want SetBitrate", cmds[0])
	}
	if want := BitrateBits(64000); sb.Bitrate != want {
		t.Errorf("bitrate = %+v, want %+v", sb.Bitrate, want)
	}
	if got := len(sink.sent()); got != 1 {
		t.Errorf("got %d publishes after respawn, want 1", got)
	}
}

func TestRespawnPreservesOrder(t *testing.T) {
	h, _, rec := newTestHandler(t)

	rec.current().Close()
	h.SetBitrate(BitrateMax())
	h.Mute(false) // no channel, settings only
	h.Stop()

	cmds := rec.current().pending()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	if _, ok := cmds[0].(SetBitrate); !ok {
		t.Errorf("command 0 is %T, want SetBitrate", cmds[0])
	}
	if _, ok := cmds[1].(SetSender); !ok {
		t.Errorf("command 1 is %T, want SetSender", cmds[1])
	}
}

func TestSwitchToSameChannelIsNoop(t *testing.T) {
	h, sink, rec := newTestHandler(t)
	h.Join(testChannel)
	sink.reset()

	h.SwitchTo(testChannel)

	if got := len(rec.current().pending()); got != 0 {
		t.Errorf("got %d commands, want none", got)
	}
	if got := len(sink.sent()); got != 0 {
		t.Errorf("got %d publishes, want none", got)
	}

	h.SwitchTo("other-channel")

	if got := h.ChannelID(); got != "other-channel" {
		t.Errorf("channel id = %q, want %q", got, "other-channel")
	}
	if got := len(rec.current().pending()); got != 0 {
		t.Errorf("channel switch enqueued %d commands, want none", got)
	}
	if got := len(sink.sent()); got != 1 {
		t.Errorf("got %d publishes, want 1", got)
	}
}

func TestJoinThenCredentialsConnect(t *testing.T) {
	h, sink, rec := newTestHandler(t)

	h.Join(testChannel)

	envs := sink.sent()
	if len(envs) != 1 {
		t.Fatalf("got %d publishes after join, want 1", len(envs))
	}
	env := envs[0]
	if env.Op != voiceStateUpdateOp {
		t.Errorf("op = %d, want %d", env.Op, voiceStateUpdateOp)
	}
	if env.Data.GuildID != testGuild {
		t.Errorf("guild id = %q, want %q", env.Data.GuildID, testGuild)
	}
	if env.Data.ChannelID == nil || *env.Data.ChannelID != testChannel {
		t.Errorf("channel id = %v, want %q", env.Data.ChannelID, testChannel)
	}
	if env.Data.SelfDeaf || env.Data.SelfMute {
		t.Errorf("self deaf/mute = %v/%v, want false/false", env.Data.SelfDeaf, env.Data.SelfMute)
	}

	h.UpdateServer("ep", "tok")
	if got := len(rec.current().pending()); got != 0 {
		t.Fatalf("connect fired with incomplete triple, %d commands queued", got)
	}

	h.UpdateState(StateUpdate{UserID: testUser, ChannelID: testChannel, SessionID: "sid"})

	cmds := rec.current().pending()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	conn, ok := cmds[0].(Connect)
	if !ok {
		t.Fatalf("got command %T, want Connect", cmds[0])
	}
	want := ConnectionInfo{
		Endpoint:  "ep",
		GuildID:   testGuild,
		SessionID: "sid",
		Token:     "tok",
		UserID:    testUser,
	}
	if conn.Info != want {
		t.Errorf("connection info = %+v, want %+v", conn.Info, want)
	}
}

func TestMuteWithoutChannelIsSettingsOnly(t *testing.T) {
	h, sink, rec := newTestHandler(t)

	h.Mute(true)

	if !h.SelfMute() {
		t.Error("self mute = false, want true")
	}
	if got := len(rec.current().pending()); got != 0 {
		t.Errorf("got %d commands, want none", got)
	}
	if got := len(sink.sent()); got != 0 {
		t.Errorf("got %d publishes, want none", got)
	}
}

func TestMuteWhileJoinedPublishesThenCommands(t *testing.T) {
	h, sink, rec := newTestHandler(t)
	h.Join(testChannel)
	sink.reset()

	// Capture how many commands were queued at the moment of publish:
	// the gateway update must go out before the worker command.
	pendingAtPublish := -1
	sink.onSend = func(StateEnvelope) {
		pendingAtPublish = len(rec.current().pending())
	}

	h.Mute(true)

	envs := sink.sent()
	if len(envs) != 1 {
		t.Fatalf("got %d publishes, want 1", len(envs))
	}
	if !envs[0].Data.SelfMute {
		t.Error("published self mute = false, want true")
	}
	if pendingAtPublish != 0 {
		t.Errorf("%d commands queued before publish, want 0", pendingAtPublish)
	}

	cmds := rec.current().pending()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	mute, ok := cmds[0].(Mute)
	if !ok {
		t.Fatalf("got command %T, want Mute", cmds[0])
	}
	if !mute.Mute {
		t.Error("Mute command flag = false, want true")
	}
}

func TestDeafenNeverCommandsWorker(t *testing.T) {
	h, sink, rec := newTestHandler(t)
	h.Join(testChannel)
	sink.reset()

	h.Deafen(true)

	if !h.SelfDeaf() {
		t.Error("self deaf = false, want true")
	}
	if got := len(rec.current().pending()); got != 0 {
		t.Errorf("got %d commands, want none", got)
	}
	envs := sink.sent()
	if len(envs) != 1 {
		t.Fatalf("got %d publishes, want 1", len(envs))
	}
	if !envs[0].Data.SelfDeaf {
		t.Error("published self deaf = false, want true")
	}
}

func TestSettingsSurviveLeave(t *testing.T) {
	h, _, _ := newTestHandler(t)

	h.Mute(true)
	h.Deafen(true)
	h.Join(testChannel)
	h.Leave()

	if !h.SelfMute() || !h.SelfDeaf() {
		t.Errorf("self mute/deaf after leave = %v/%v, want true/true", h.SelfMute(), h.SelfDeaf())
	}
}

func TestServerUpdateWithoutEndpointLeaves(t *testing.T) {
	h, sink, rec := newTestHandler(t)
	h.Join(testChannel)
	sink.reset()

	h.UpdateServer("", "tok")

	if h.token != "tok" {
		t.Errorf("token = %q, want %q", h.token, "tok")
	}
	if got := h.ChannelID(); got != "" {
		t.Errorf("channel id = %q, want empty", got)
	}

	cmds := rec.current().pending()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if _, ok := cmds[0].(Disconnect); !ok {
		t.Errorf("got command %T, want Disconnect", cmds[0])
	}

	envs := sink.sent()
	if len(envs) != 1 {
		t.Fatalf("got %d publishes, want 1", len(envs))
	}
	if envs[0].Data.ChannelID != nil {
		t.Errorf("published channel id = %q, want null", *envs[0].Data.ChannelID)
	}
}

func TestStateUpdateClearedChannelEmitsNothing(t *testing.T) {
	h, sink, rec := newTestHandler(t)
	h.Join(testChannel)
	sink.reset()

	h.UpdateState(StateUpdate{UserID: testUser, ChannelID: "", SessionID: "sid"})

	// The event already cleared the channel, so the follow-up leave is a
	// no-op: no Disconnect, no publish.
	if got := h.ChannelID(); got != "" {
		t.Errorf("channel id = %q, want empty", got)
	}
	if got := len(rec.current().pending()); got != 0 {
		t.Errorf("got %d commands, want none", got)
	}
	if got := len(sink.sent()); got != 0 {
		t.Errorf("got %d publishes, want none", got)
	}
}

func TestStandaloneSkipsPublish(t *testing.T) {
	rec := &spawnRecorder{}
	h := Standalone(testGuild, testUser, rec.spawn)

	h.Join(testChannel)
	h.Leave()

	cmds := rec.current().pending()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if _, ok := cmds[0].(Disconnect); !ok {
		t.Errorf("got command %T, want Disconnect", cmds[0])
	}
}

func TestPlayVariants(t *testing.T) {
	h, _, rec := newTestHandler(t)

	returned := h.PlayReturning(nil)
	only := h.PlayOnly(nil)
	h.Stop()

	cmds := rec.current().pending()
	if len(cmds) != 3 {
		t.Fatalf("got %d commands, want 3", len(cmds))
	}

	add, ok := cmds[0].(AddSender)
	if !ok {
		t.Fatalf("command 0 is %T, want AddSender", cmds[0])
	}
	if add.Player != returned {
		t.Error("AddSender carries a different player than the one returned")
	}

	set, ok := cmds[1].(SetSender)
	if !ok {
		t.Fatalf("command 1 is %T, want SetSender", cmds[1])
	}
	if set.Player != only {
		t.Error("SetSender carries a different player than the one returned")
	}

	stop, ok := cmds[2].(SetSender)
	if !ok {
		t.Fatalf("command 2 is %T, want SetSender", cmds[2])
	}
	if stop.Player != nil {
		t.Error("Stop should enqueue SetSender with no player")
	}
}

func TestCloseLeavesExactlyOnce(t *testing.T) {
	h, sink, rec := newTestHandler(t)
	h.Join(testChannel)
	sink.reset()

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	cmds := rec.current().pending()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if _, ok := cmds[0].(Disconnect); !ok {
		t.Errorf("got command %T, want Disconnect", cmds[0])
	}

	// A closed handler must not resurrect its worker.
	h.Stop()
	if got := rec.count(); got != 1 {
		t.Errorf("got %d spawned workers after close, want 1", got)
	}
}
