package voice

import (
	"sync"
	"time"
)

// Player is the shared handle around one playing Source. It is handed to
// the worker via AddSender/SetSender while the caller keeps a reference
// for control, so every field lives behind the mutex. The worker is the
// primary mutator (playback progression); the caller inspects and
// pauses/resumes under the same lock.
type Player struct {
	mu       sync.Mutex
	source   Source
	playing  bool
	finished bool
	volume   float32
	position time.Duration
}

// NewPlayer wraps src in a playing handle at full volume.
func NewPlayer(src Source) *Player {
	return &Player{
		source:  src,
		playing: true,
		volume:  1.0,
	}
}

// Source returns the wrapped audio source.
func (p *Player) Source() Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Playing reports whether playback is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && !p.finished
}

// Pause suspends playback without detaching the source.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

// Resume restarts a paused player. It has no effect once the source
// finished.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.finished {
		p.playing = true
	}
}

// Volume returns the current volume, 1.0 being unmodified.
func (p *Player) Volume() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume sets the playback volume, 1.0 being unmodified.
func (p *Player) SetVolume(v float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

// Finished reports whether the source has been fully consumed.
func (p *Player) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// Position returns how much audio has been sent so far.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Advance moves the playback position forward. Called by the worker after
// each sent frame.
func (p *Player) Advance(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position += d
}

// Finish marks the source as fully consumed. Called by the worker.
func (p *Player) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
	p.playing = false
}
