package client

import "time"

// Heartbeat emits a ping every interval while the channel is open.
// It has no dead-peer timeout: pongs are only acknowledged.
// All methods run on the session loop.
type Heartbeat struct {
	interval time.Duration
	post     func(func()) bool
	ping     func()

	timer   *time.Timer
	token   uint64
	running bool
}

func newHeartbeat(interval time.Duration, post func(func()) bool, ping func()) *Heartbeat {
	return &Heartbeat{interval: interval, post: post, ping: ping}
}

// Start arms the first tick. A non-positive interval disables pings.
func (h *Heartbeat) Start() {
	if h.running || h.interval <= 0 {
		return
	}
	h.running = true
	h.arm()
}

func (h *Heartbeat) Stop() {
	if !h.running {
		return
	}
	h.running = false
	h.token++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *Heartbeat) Running() bool {
	return h.running
}

func (h *Heartbeat) arm() {
	h.token++
	token := h.token
	h.timer = time.AfterFunc(h.interval, func() {
		h.post(func() {
			// A tick that fired after Stop belongs to an old run.
			if !h.running || token != h.token {
				return
			}
			h.ping()
			// ping may have stopped the heartbeat by closing the channel.
			if h.running && token == h.token {
				h.arm()
			}
		})
	})
}
