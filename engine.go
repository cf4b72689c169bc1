// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"time"

	"github.com/sipmedia/mediacore/media"
)

// MediaKind distinguishes the audio/video/image(T.38) variant a RtpEngine
// carries, per §9's "sum/variant, not a shared struct with unused fields"
// design note.
type MediaKind int

const (
	MediaKindAudio MediaKind = iota
	MediaKindVideo
	MediaKindImage
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindAudio:
		return "audio"
	case MediaKindVideo:
		return "video"
	case MediaKindImage:
		return "image"
	default:
		return "unknown"
	}
}

// RTPBug is a bitset of quirk workarounds a RtpEngine may have enabled,
// either learned from the substring table in rtpbugs.go or forced via the
// rtp_manual_rtp_bugs channel variable. See §4.11.
type RTPBug uint32

const (
	RTPBugCiscoSkipMarkBit RTPBug = 1 << iota
	RTPBugSonusSendInvalidTimestamp2833
	RTPBugIgnoreMarkBit
	RTPBugStartSeqAtZero
	RTPBugNeverSendMarker
	RTPBugAlwaysAutoAdjust
	RTPBugSendLinearTimestamps
	RTPBugAcceptAnyPacket
)

// ptimeAutoFix tracks the running-mismatch state machine that re-paces the
// read timer when the arriving packet cadence disagrees with the
// negotiated ptime. Constants are confirmed against
// original_source/src/switch_core_media.c.
type ptimeAutoFix struct {
	checkedFrames  int
	mismatchFrames int
	observedPtime  time.Duration
}

const (
	maxCodecCheckFrames = 50
	maxMismatchFrames   = 5
)

// observe feeds one arrival interval into the auto-fix state machine and
// reports whether enough consecutive mismatches accumulated to justify a
// ptime change, and to what value. An interval above 120ms is never
// adopted (§4.11/§8): it is returned with changed == false.
func (p *ptimeAutoFix) observe(interval time.Duration, negotiated time.Duration) (newPtime time.Duration, changed bool) {
	if p.checkedFrames >= maxCodecCheckFrames {
		p.checkedFrames = 0
		p.mismatchFrames = 0
	}
	p.checkedFrames++

	if interval == negotiated {
		p.mismatchFrames = 0
		return 0, false
	}

	if p.observedPtime != interval {
		p.observedPtime = interval
		p.mismatchFrames = 1
		return 0, false
	}

	p.mismatchFrames++
	if p.mismatchFrames < maxMismatchFrames {
		return 0, false
	}

	p.mismatchFrames = 0
	p.checkedFrames = 0
	if interval > 120*time.Millisecond {
		return interval, false
	}
	return interval, true
}

// RtpEngine is the per-media-line negotiation and transport state, owned
// by value inside MediaHandle (§3/§9 — no pointer cycle between handle and
// engine).
type RtpEngine struct {
	Kind MediaKind

	Codec   CodecParams
	Secure  SecureSettings
	IceIn   IceState
	IceOut  IceState
	T38     T38Options

	LocalFingerprint  string
	RemoteFingerprint string
	FingerprintAlg    string

	SSRCLocal  uint32
	SSRCRemote uint32

	RTCPIntervalMs int

	// Transport is nil until the Transport Provisioner activates this
	// engine; it is the live socket/SRTP/DTLS/RTCP-stats plumbing kept
	// from the teacher's media.MediaSession.
	Transport *media.MediaSession

	LastPacketAt time.Time

	autoFix ptimeAutoFix
	bugs    RTPBug

	MaxMissedNormal int
	MaxMissedHold   int

	timersSuspended bool

	videoWorkerRunning bool

	// dtmf caches the RFC 4733 send/receive middleware built the first
	// time SendDTMF/ReadDTMF/OnDTMF is called on this engine (dtmf.go).
	dtmf *dtmf

	// rtpSession lazily wraps Transport for RTCP quality reporting
	// (media/rtp_session.go); built on first use by rtpSessionFor.
	rtpSession *media.RTPSession

	// ReadStats mirrors the live receive-side quality snapshot
	// (media/rtp_stats_reader_writer.go's RTPStatsReader callback, driven
	// by dtmf.go's background read loop).
	ReadStats media.RTPReadStats
}

// rtpSessionFor lazily builds the RTCP-reporting RTPSession wrapper around
// Transport, shared between the DTMF read path and any other consumer that
// wants RTCP sender/receiver report tracking.
func (e *RtpEngine) rtpSessionFor() *media.RTPSession {
	if e.rtpSession == nil {
		e.rtpSession = media.NewRTPSession(e.Transport)
	}
	return e.rtpSession
}

// SuspendTimers/ResumeTimers implement the rtp_notimer_during_bridge
// behavior (§4.11): while suspended, observePacket skips the ptime
// auto-fix and only records LastPacketAt.
func (e *RtpEngine) SuspendTimers() { e.timersSuspended = true }
func (e *RtpEngine) ResumeTimers()  { e.timersSuspended = false }

// HasBug reports whether a given RTP quirk workaround is enabled, whether
// learned from the user-agent substring table or forced manually.
func (e *RtpEngine) HasBug(b RTPBug) bool { return e.bugs&b != 0 }

func (e *RtpEngine) setBug(b RTPBug)   { e.bugs |= b }
func (e *RtpEngine) clearBugs()        { e.bugs = 0 }

// observePacket feeds one packet arrival into the ptime auto-fix machine
// and returns the new ptime when it fires, or a dropped interval above
// 120ms with false. While timers are suspended it only records
// LastPacketAt (bridge fast-path, §4.11).
func (e *RtpEngine) observePacket(now time.Time) (time.Duration, bool) {
	if e.timersSuspended {
		e.LastPacketAt = now
		return 0, false
	}
	var interval time.Duration
	if !e.LastPacketAt.IsZero() {
		interval = now.Sub(e.LastPacketAt)
	}
	e.LastPacketAt = now
	if interval <= 0 {
		return 0, false
	}
	negotiated := time.Duration(e.Codec.PtimeMs) * time.Millisecond
	if negotiated <= 0 {
		return 0, false
	}
	newPtime, changed := e.autoFix.observe(interval, negotiated)
	if changed {
		e.Codec.PtimeMs = int(newPtime / time.Millisecond)
	}
	return newPtime, changed
}
