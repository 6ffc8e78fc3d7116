package voice

import (
	"errors"
	"sync"
)

// ErrPipeClosed is returned by Sender.Send after the worker side closed
// the pipe.
var ErrPipeClosed = errors.New("command pipe closed")

// pipe is an unbounded, ordered, single-producer/single-consumer command
// queue between a Handler and its worker. Send never blocks; Next blocks
// until an item arrives or the pipe is closed and drained.
type pipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Command
	closed bool
}

// Sender is the handler-side half of a pipe.
type Sender struct {
	p *pipe
}

// Inbox is the worker-side half of a pipe.
type Inbox struct {
	p *pipe
}

func newPipe() (*Sender, *Inbox) {
	p := &pipe{}
	p.cond = sync.NewCond(&p.mu)
	return &Sender{p: p}, &Inbox{p: p}
}

// Send enqueues cmd without blocking. It fails only when the pipe has
// been closed, which means the owning worker is gone.
func (s *Sender) Send(cmd Command) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	if s.p.closed {
		return ErrPipeClosed
	}
	s.p.items = append(s.p.items, cmd)
	s.p.cond.Signal()
	return nil
}

// Close marks the pipe closed from the producer side. Items already
// enqueued remain readable; further Sends fail.
func (s *Sender) Close() {
	s.p.close()
}

// Next returns the oldest pending command. It blocks while the pipe is
// open and empty, and reports false once the pipe is closed and drained.
func (in *Inbox) Next() (Command, bool) {
	in.p.mu.Lock()
	defer in.p.mu.Unlock()

	for len(in.p.items) == 0 && !in.p.closed {
		in.p.cond.Wait()
	}
	if len(in.p.items) == 0 {
		return nil, false
	}
	cmd := in.p.items[0]
	in.p.items = in.p.items[1:]
	return cmd, true
}

// Close marks the pipe closed from the consumer side, failing all
// subsequent Sends. A worker closes its inbox on exit so the handler
// notices and respawns.
func (in *Inbox) Close() {
	in.p.close()
}

func (p *pipe) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.cond.Broadcast()
}

// pending returns a snapshot of the queued commands, oldest first.
func (in *Inbox) pending() []Command {
	in.p.mu.Lock()
	defer in.p.mu.Unlock()

	out := make([]Command, len(in.p.items))
	copy(out, in.p.items)
	return out
}
