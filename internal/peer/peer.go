// Package peer is the client side of a conference: it keeps one media
// connection per remote participant and drives offer/answer/candidate
// negotiation from the signals the relay delivers.
package peer

import (
	"errors"
	"sync"

	"github.com/xenn00/conference-system/internal/signal"
)

var (
	ErrSessionClosed    = errors.New("peer: session closed")
	ErrUnsupportedTrack = errors.New("peer: unsupported track implementation")
)

type State int

const (
	StateAbsent State = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "absent"
	}
}

// PeerConnection is the media connection to a single remote participant.
type PeerConnection interface {
	// LocalOffer creates an offer and applies it as the local description.
	LocalOffer() (signal.SessionDescription, error)
	// LocalAnswer creates an answer and applies it as the local description.
	LocalAnswer() (signal.SessionDescription, error)
	SetRemoteDescription(desc signal.SessionDescription) error
	AddICECandidate(c signal.ICECandidate) error
	AddTrack(track LocalTrack) error
	// ReplaceVideoTrack swaps the outgoing video in place, without renegotiation.
	ReplaceVideoTrack(track LocalTrack) error
	OnICECandidate(fn func(signal.ICECandidate))
	OnFailed(fn func(error))
	Close() error
}

// Dialer opens a new connection towards remoteUserID.
type Dialer func(remoteUserID string) (PeerConnection, error)

// Signaler delivers envelopes to the relay. Send must be safe for
// concurrent use.
type Signaler interface {
	Send(sig signal.Signal) error
}

// remotePeer is one entry of the session's peer map. Operations on it run
// in order on its own goroutine.
type remotePeer struct {
	userID string
	pc     PeerConnection

	mu        sync.Mutex
	state     State
	ops       []func() error
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by the operation goroutine
	remoteSet bool
	pending   []signal.ICECandidate
}

func newRemotePeer(userID string, pc PeerConnection) *remotePeer {
	return &remotePeer{
		userID: userID,
		pc:     pc,
		state:  StateNegotiating,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (p *remotePeer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// setState never leaves the closed state.
func (p *remotePeer) setState(st State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateClosed || p.state == st {
		return false
	}
	p.state = st
	return true
}

func (p *remotePeer) push(op func() error) bool {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return false
	}
	p.ops = append(p.ops, op)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

func (p *remotePeer) next() (func() error, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateClosed || len(p.ops) == 0 {
		return nil, false
	}
	op := p.ops[0]
	p.ops[0] = nil
	p.ops = p.ops[1:]
	return op, true
}

// run drains the queue until the peer closes or an operation fails.
func (p *remotePeer) run(fail func(*remotePeer, error)) {
	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}
		for {
			op, ok := p.next()
			if !ok {
				break
			}
			if err := op(); err != nil {
				fail(p, err)
				return
			}
		}
	}
}

// close reports whether this call performed the transition.
func (p *remotePeer) close() bool {
	closed := false
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.state = StateClosed
		p.ops = nil
		p.mu.Unlock()

		close(p.done)
		_ = p.pc.Close()
		closed = true
	})
	return closed
}
