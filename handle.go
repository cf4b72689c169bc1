// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HandleFlag is a bitset of behavior toggles carried on MediaHandle,
// mirroring the teacher's functional-options-configured boolean fields but
// packed into one word since the spec names a dozen independent flags.
type HandleFlag uint32

const (
	FlagRenegOnHold HandleFlag = 1 << iota
	FlagRenegOnReinvite
	FlagRTCPMuxPreferred
	FlagWebRTCProfile
	FlagT38Passthrough
	FlagRTPDebug
	FlagICEDebug
	FlagSDPDebug
	// FlagDisableHold suppresses the hold state machine: an incoming
	// sendonly/inactive/zero-address signal is ignored entirely (§4.7).
	FlagDisableHold
	// FlagSuppressMOH engages ProtoHold without upgrading to
	// HoldHeldWithMOH, matching a moh_sound of "silence"/"indicate_hold"
	// (§4.7's "unless configured as silence or indicate_hold").
	FlagSuppressMOH
	// FlagSecureOnly suppresses the SDP Generator's dual SAVP+AVP block
	// emission for secure calls, leaving only the SAVP block (§4.8).
	FlagSecureOnly
	// FlagSuppressMultiPtime suppresses the SDP Generator's one-block-
	// per-distinct-native-ptime emission (§4.8's "Multi-ptime emission"),
	// matching a configuration or WebRTC profile that wants a single
	// audio block regardless of how many native ptimes the preference
	// list spans.
	FlagSuppressMultiPtime
)

// dynamicPTStart is the first payload type handed out by the dynamic-PT
// allocator cursor (§3); static assignments never use this range.
const dynamicPTStart = 98

// MediaHandle is the top-level object the signaling layer drives: one
// audio RtpEngine, one optional video RtpEngine, and the negotiation
// bookkeeping shared across re-offers. Engines are held by value so the
// handle owns them outright with no pointer cycle (§9).
type MediaHandle struct {
	ID uuid.UUID

	Audio RtpEngine
	Video RtpEngine
	HasVideo bool

	flags HandleFlag

	// CodecPreference is the resolved, ordered list of codec names this
	// handle will offer/accept, per ResolveCodecPreference's four-layer
	// precedence (§4.11).
	CodecPreference []string
	// ChosenPT runs parallel to CodecPreference: the payload type picked
	// for each preferred codec once negotiation completes.
	ChosenPT []uint8

	// TieBreak selects the Codec Selector's preference-order rule
	// (generous/greedy/scrooge, §4.4); zero-value is TieBreakGenerous.
	TieBreak TieBreakPolicy

	// lastNegotiated caches the last successful per-m-line codec choice so
	// a re-offer that doesn't change anything can skip renegotiation
	// (§4.1 "Stickiness").
	lastNegotiated map[MediaKind]CodecParams

	nextDynamicPT uint8

	// msid is the WebRTC stream-grouping identifier the SDP Generator
	// stamps onto every a=ssrc msid/mslabel line so audio and video of
	// the same handle are grouped under one MediaStream (§4.8).
	msid string

	env MediaEnvironment
	log zerolog.Logger

	mu          sync.Mutex
	emittedSDP  string
	holdState   HoldState

	// partner, answered, and partnerMsgs back PartnerLeg/MarkAnswered/
	// queuePartnerMessage (partnerleg.go): the bridge-peer cross-copy
	// plumbing T.38 passthrough and ZRTP-hash mirroring need (§4.1/§4.6).
	partner     *MediaHandle
	answered    bool
	partnerMsgs []PartnerMessage
}

// HandleOption configures a MediaHandle at construction time, grounded in
// diago's DiagoOption / SilvaMendes' ClientOption functional-options
// pattern (§4.9).
type HandleOption func(*MediaHandle)

// WithEnvironment wires the collaborator bundle (cert gen, port allocator,
// NAT helper, STUN resolver, codec registry, ConfigView, event sink).
func WithEnvironment(env MediaEnvironment) HandleOption {
	return func(h *MediaHandle) { h.env = env }
}

// WithVideo enables the second RtpEngine.
func WithVideo() HandleOption {
	return func(h *MediaHandle) { h.HasVideo = true }
}

// WithFlags ORs in the given behavior flags.
func WithFlags(f HandleFlag) HandleOption {
	return func(h *MediaHandle) { h.flags |= f }
}

// WithTieBreakPolicy sets the Codec Selector's generous/greedy/scrooge
// preference-order rule (§4.4). Unset handles stay TieBreakGenerous.
func WithTieBreakPolicy(policy TieBreakPolicy) HandleOption {
	return func(h *MediaHandle) { h.TieBreak = policy }
}

// WithCodecPreference seeds the initial preference list, bypassing
// ResolveCodecPreference's channel-variable lookup (useful for tests and
// for callers that already resolved it).
func WithCodecPreference(names []string) HandleOption {
	return func(h *MediaHandle) { h.CodecPreference = append([]string(nil), names...) }
}

// NewMediaHandle constructs a MediaHandle with a fresh ID, value-initialized
// engines, and the dynamic-PT cursor starting at 98 per §3.
func NewMediaHandle(opts ...HandleOption) *MediaHandle {
	id := uuid.New()
	h := &MediaHandle{
		ID:             id,
		nextDynamicPT:  dynamicPTStart,
		lastNegotiated: make(map[MediaKind]CodecParams),
		holdState:      HoldActive,
		log:            defaultLog,
		msid:           "mediacore-" + id.String()[:8],
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HasFlag reports whether a behavior flag is set.
func (h *MediaHandle) HasFlag(f HandleFlag) bool { return h.flags&f != 0 }

// allocDynamicPT returns the next free dynamic payload type, wrapping at
// 127 back to 98 (the RFC 3551 dynamic range never reaches 128).
func (h *MediaHandle) allocDynamicPT() uint8 {
	pt := h.nextDynamicPT
	h.nextDynamicPT++
	if h.nextDynamicPT > 127 {
		h.nextDynamicPT = dynamicPTStart
	}
	return pt
}

// engineFor returns the RtpEngine for a media kind, or nil for video when
// the handle was built without WithVideo.
func (h *MediaHandle) engineFor(kind MediaKind) *RtpEngine {
	switch kind {
	case MediaKindAudio:
		return &h.Audio
	case MediaKindVideo, MediaKindImage:
		if !h.HasVideo {
			return nil
		}
		return &h.Video
	default:
		return nil
	}
}

// ApplyManualBugs forces a set of RTP-bug workarounds onto both engines,
// implementing the rtp_manual_rtp_bugs channel-variable override that
// bypasses the substring-match table entirely (§4.11).
func (h *MediaHandle) ApplyManualBugs(mask RTPBug) {
	h.Audio.clearBugs()
	h.Audio.setBug(mask)
	if h.HasVideo {
		h.Video.clearBugs()
		h.Video.setBug(mask)
	}
}

// SetEmittedSDP records the last SDP string generated for this handle,
// guarded by mu since SDP generation can race with re-offer processing.
func (h *MediaHandle) setEmittedSDP(sdp string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emittedSDP = sdp
}

func (h *MediaHandle) EmittedSDP() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.emittedSDP
}
