// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

// PartnerMessageKind enumerates the cross-leg requests one MediaHandle can
// queue for its partner leg (bridge peer), per §4.1/§4.6's "cross-copy
// before answer emission" and "queue a message asking the partner to emit
// a mirroring image m-line" requirements.
type PartnerMessageKind int

const (
	// PartnerEmitImageMLine asks the partner leg's next generated SDP to
	// include an image/udptl m-line mirroring this leg's T.38 passthrough.
	PartnerEmitImageMLine PartnerMessageKind = iota
)

// PartnerMessage is one queued cross-leg request.
type PartnerMessage struct {
	Kind PartnerMessageKind
	T38  T38Options
}

// SetPartnerLeg wires the bridge peer a MediaHandle cross-copies ZRTP
// hashes and T.38 passthrough state with (§9: "partner-leg cross-copy
// operations... read-lock the partner session"). Both legs' mu guard their
// own fields only; cross-leg mutation always goes through the partner's
// own locked accessors below, never direct field writes.
func (h *MediaHandle) SetPartnerLeg(p *MediaHandle) {
	h.mu.Lock()
	h.partner = p
	h.mu.Unlock()
}

// PartnerLeg returns the bridge peer, or nil if this handle is not
// bridged to another leg.
func (h *MediaHandle) PartnerLeg() *MediaHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.partner
}

// MarkAnswered records that this leg's offer/answer exchange completed,
// which T.38 passthrough requires of the partner leg before it will
// switch a leg into UDPTL mode (§4.6 "require partner leg answered").
func (h *MediaHandle) MarkAnswered() {
	h.mu.Lock()
	h.answered = true
	h.mu.Unlock()
}

// Answered reports whether MarkAnswered has been called for this leg.
func (h *MediaHandle) Answered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.answered
}

// queuePartnerMessage appends a cross-leg request to this handle's queue
// under its own lock; ApplyT38Passthrough calls it on the partner leg and
// DrainPartnerMessages returns the queued requests. GenerateSDP does not
// drain the queue.
func (h *MediaHandle) queuePartnerMessage(m PartnerMessage) {
	h.mu.Lock()
	h.partnerMsgs = append(h.partnerMsgs, m)
	h.mu.Unlock()
}

// DrainPartnerMessages returns and clears every cross-leg request queued
// for this handle so far.
func (h *MediaHandle) DrainPartnerMessages() []PartnerMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.partnerMsgs
	h.partnerMsgs = nil
	return msgs
}
