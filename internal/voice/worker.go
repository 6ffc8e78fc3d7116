package voice

import "log"

// Worker owns a live voice transport connection: it opens and closes the
// transport, runs the audio pipeline, and applies encoder settings. This
// package only coordinates one; the actual framing, encryption and codec
// work happen behind this interface.
type Worker interface {
	Connect(info ConnectionInfo) error
	Disconnect() error
	SetReceiver(r Receiver)
	AddSender(p *Player)
	SetSender(p *Player)
	SetBitrate(b Bitrate)
	Mute(mute bool) error
}

// SpawnFunc starts a worker task that consumes the given inbox. The
// handler calls it once at construction and again after every detected
// worker death.
type SpawnFunc func(guildID string, inbox *Inbox)

// Run dispatches commands from inbox to w until the pipe is closed and
// drained. It closes the inbox on exit so the handler's next send fails
// and triggers a respawn.
func Run(guildID string, inbox *Inbox, w Worker) {
	defer inbox.Close()

	for {
		cmd, ok := inbox.Next()
		if !ok {
			return
		}

		switch c := cmd.(type) {
		case Connect:
			if err := w.Connect(c.Info); err != nil {
				log.Printf("[Voice] Guild %s: connect to %s failed: %v", guildID, c.Info.Endpoint, err)
			}
		case Disconnect:
			if err := w.Disconnect(); err != nil {
				log.Printf("[Voice] Guild %s: disconnect failed: %v", guildID, err)
			}
		case SetReceiver:
			w.SetReceiver(c.Receiver)
		case AddSender:
			w.AddSender(c.Player)
		case SetSender:
			w.SetSender(c.Player)
		case SetBitrate:
			w.SetBitrate(c.Bitrate)
		case Mute:
			if err := w.Mute(c.Mute); err != nil {
				log.Printf("[Voice] Guild %s: mute update failed: %v", guildID, err)
			}
		default:
			log.Printf("[Voice] Guild %s: dropping unknown command %T", guildID, cmd)
		}
	}
}

// SpawnWorkers builds a SpawnFunc that runs each inbox against a worker
// produced by factory, one goroutine per spawn.
func SpawnWorkers(factory func(guildID string) Worker) SpawnFunc {
	return func(guildID string, inbox *Inbox) {
		go Run(guildID, inbox, factory(guildID))
	}
}

// defaultSpawn runs commands against a worker that only logs them. Used
// when no real transport worker has been supplied.
func defaultSpawn(guildID string, inbox *Inbox) {
	go Run(guildID, inbox, nopWorker{guildID: guildID})
}

type nopWorker struct {
	guildID string
}

func (w nopWorker) Connect(info ConnectionInfo) error {
	log.Printf("[Voice] Guild %s: no transport worker configured, ignoring connect to %s", w.guildID, info.Endpoint)
	return nil
}

func (w nopWorker) Disconnect() error    { return nil }
func (w nopWorker) SetReceiver(Receiver) {}
func (w nopWorker) AddSender(*Player)    {}
func (w nopWorker) SetSender(*Player)    {}
func (w nopWorker) SetBitrate(Bitrate)   {}
func (w nopWorker) Mute(bool) error      { return nil }
