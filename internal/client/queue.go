package client

import (
	"slices"

	"github.com/vladimirruppel/roomchat/internal/protocol"
)

// SendResult tells the caller what happened to an envelope.
type SendResult int

const (
	// SendSent means the envelope was written to the open channel.
	SendSent SendResult = iota
	// SendQueued means the envelope waits for the channel to open.
	SendQueued
	// SendDropped means nothing was sent or queued, e.g. blank content.
	SendDropped
)

func (r SendResult) String() string {
	switch r {
	case SendSent:
		return "sent"
	case SendQueued:
		return "queued"
	case SendDropped:
		return "dropped"
	}
	return "unknown"
}

// Transmitter writes envelopes to the channel.
type Transmitter interface {
	IsOpen() bool
	Transmit(env protocol.Envelope) error
}

// OutboundQueue buffers envelopes that could not be written. Enqueue order
// is transmit order, across reconnects.
type OutboundQueue struct {
	items []protocol.Envelope
}

func NewOutboundQueue() *OutboundQueue {
	return &OutboundQueue{}
}

// Send transmits env right away when the channel is open and nothing is
// waiting ahead of it. Otherwise, or when the write fails, env is queued.
func (q *OutboundQueue) Send(env protocol.Envelope, tx Transmitter) SendResult {
	if len(q.items) > 0 || !tx.IsOpen() {
		q.items = append(q.items, env)
		return SendQueued
	}
	if err := tx.Transmit(env); err != nil {
		q.items = append(q.items, env)
		return SendQueued
	}
	return SendSent
}

// Flush drains the queue head first. It stops at the first entry that
// cannot be written, leaving it and everything behind it queued in order.
func (q *OutboundQueue) Flush(tx Transmitter) int {
	sent := 0
	for len(q.items) > 0 && tx.IsOpen() {
		if err := tx.Transmit(q.items[0]); err != nil {
			break
		}
		q.items[0] = protocol.Envelope{}
		q.items = q.items[1:]
		sent++
	}
	if len(q.items) == 0 {
		q.items = nil
	}
	return sent
}

func (q *OutboundQueue) Len() int {
	return len(q.items)
}

// Pending returns a copy of the queued envelopes, head first.
func (q *OutboundQueue) Pending() []protocol.Envelope {
	return slices.Clone(q.items)
}
