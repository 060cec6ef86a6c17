package swing

import (
	"sync"

	"github.com/chaz8081/ptbaby/internal/ble/protocol"
)

// State is the last-known logical state of the swing. It reflects what was
// last sent successfully, not what the device reports.
type State struct {
	Connected     bool `json:"connected"`
	Powered       bool `json:"powered"`
	SwingSpeed    int  `json:"swing_speed"`
	MelodyOn      bool `json:"melody_on"`
	Melody        int  `json:"melody"`
	VolumePercent int  `json:"volume"`
	TimerMinutes  int  `json:"timer"`
	InductionMode bool `json:"induction_mode"`
}

func initialState() State {
	return State{
		Melody:        protocol.MinMelody,
		VolumePercent: protocol.DefaultVolume,
	}
}

// stateCache holds State and fans snapshots out to subscribers. Updates are
// applied through update, which keeps powered false while disconnected so
// that a late command update cannot contradict a connection loss.
type stateCache struct {
	mu    sync.RWMutex
	state State
	subs  map[uint64]chan State
	next  uint64
}

func newStateCache() *stateCache {
	return &stateCache{
		state: initialState(),
		subs:  make(map[uint64]chan State),
	}
}

func (c *stateCache) snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// update applies fn to a copy of the state, stores it and publishes it if
// anything changed.
func (c *stateCache) update(fn func(*State)) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state
	fn(&next)
	if !next.Connected {
		next.Powered = false
	}
	if next == c.state {
		return next
	}
	c.state = next
	for _, ch := range c.subs {
		offer(ch, next)
	}
	return next
}

func (c *stateCache) markConnected() {
	c.update(func(s *State) { s.Connected = true })
}

func (c *stateCache) markDisconnected() {
	c.update(func(s *State) {
		s.Connected = false
		s.Powered = false
	})
}

// subscribe returns a channel that always holds the newest snapshot not yet
// received. The current state is delivered first.
func (c *stateCache) subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
}

// offer replaces any unread snapshot with s (caller holds mu).
func offer(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
