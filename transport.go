// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sipmedia/mediacore/media"
)

// rtcpIntervalBounds are the accepted millisecond range for
// rtcp_audio_interval_msec/rtcp_video_interval_msec; outside this range the
// Transport Provisioner rejects the value instead of silently substituting
// a default (Open Question 1, see DESIGN.md).
const (
	minRTCPIntervalMs = 100
	maxRTCPIntervalMs = 500000
)

// jitterBufferBounds are the accepted millisecond range for
// jitterbuffer_msec's qlen component.
const (
	minJitterMs = 20
	maxJitterMs = 10000
)

// ProvisionTransport is the Transport Provisioner (§4.5): it allocates a
// local port via the collaborator, builds the live media.MediaSession, and
// wires it into the engine. Grounded on media/media_session.go's
// NewMediaSession/Init/createListeners chain.
func ProvisionTransport(h *MediaHandle, e *RtpEngine, localIP net.IP) error {
	env := h.environment()

	port, err := env.AllocatePort(localIP)
	if err != nil {
		return newProvisionError("allocate-port", e.Kind.String(), err)
	}

	sess, err := media.NewMediaSession(localIP, port)
	if err != nil {
		env.ReleasePort(localIP, port)
		return newProvisionError("new-session", e.Kind.String(), err)
	}

	// NewMediaSession already called Init (binding the listeners and, for
	// port 0, letting the OS assign one); reflect whatever it actually
	// bound rather than the port we asked for.
	if extIP, extPort, err := env.ExternalAddr(localIP, sess.Laddr.Port); err == nil && extIP != nil {
		sess.ExternalIP = extIP
		_ = extPort
	} else if extIP, extPort, err := env.ResolveExternal(localIP, sess.Laddr.Port); err == nil && extIP != nil {
		sess.ExternalIP = extIP
		_ = extPort
	}

	e.Transport = sess
	e.Codec.Local = Endpoint{IP: localIP, Port: sess.Laddr.Port}
	// Matches rtp_packet_writer.go's own SSRC generation (rand.Uint32()
	// at writer construction); generated here too since this engine's
	// CodecParams/SecureSettings/SDP are negotiated before any
	// RTPPacketWriter exists.
	e.SSRCLocal = rand.Uint32()
	h.log.Debug().Str("kind", e.Kind.String()).Str("laddr", sess.Laddr.String()).Msg("transport provisioned")
	return nil
}

// ActivateOptions carries the channel-variable-derived settings that
// Activate applies once negotiation has produced a
// CodecParams/SecureSettings/IceState for the engine.
type ActivateOptions struct {
	RTCPIntervalMs int
	JitterMs       int
	InactivityMs   int
	HoldInactivityMs int
}

// ParseJitterBuffer parses the jitterbuffer_msec channel variable
// ("qlen[:maxqlen]" or a single value for both) and validates it against
// the 20-10000ms bounds (§8).
func ParseJitterBuffer(raw string) (qlen, maxqlen int, err error) {
	parts := strings.Split(raw, ":")
	qlen, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad jitterbuffer_msec value %q: %w", raw, err)
	}
	maxqlen = qlen
	if len(parts) > 1 {
		maxqlen, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("bad jitterbuffer_msec maxqlen %q: %w", raw, err)
		}
	}
	if qlen < minJitterMs || qlen > maxJitterMs {
		return 0, 0, fmt.Errorf("jitterbuffer_msec qlen %d out of range [%d,%d]", qlen, minJitterMs, maxJitterMs)
	}
	if maxqlen < qlen || maxqlen > maxJitterMs {
		return 0, 0, fmt.Errorf("jitterbuffer_msec maxqlen %d out of range [%d,%d]", maxqlen, qlen, maxJitterMs)
	}
	return qlen, maxqlen, nil
}

// ValidateRTCPInterval enforces the 100-500000ms bound, returning an error
// rather than clamping (Open Question 1 decision).
func ValidateRTCPInterval(ms int) error {
	if ms < minRTCPIntervalMs || ms > maxRTCPIntervalMs {
		return fmt.Errorf("rtcp interval %dms out of range [%d,%d]", ms, minRTCPIntervalMs, maxRTCPIntervalMs)
	}
	return nil
}

// Activate wires the negotiated CodecParams/SecureSettings onto the live
// transport, validating RTCPIntervalMs and copying the inactivity
// thresholds from the channel-variable-derived knobs.
// Grounded on media_session.go's StartRTP/SetRemoteAddr plus the ptime
// auto-fix machine in engine.go.
func (h *MediaHandle) Activate(e *RtpEngine, opts ActivateOptions) error {
	if e.Transport == nil {
		return newProvisionError("activate", e.Kind.String(), fmt.Errorf("transport not provisioned"))
	}
	if opts.RTCPIntervalMs != 0 {
		if err := ValidateRTCPInterval(opts.RTCPIntervalMs); err != nil {
			return newProvisionError("activate", e.Kind.String(), err)
		}
		e.RTCPIntervalMs = opts.RTCPIntervalMs
	}

	e.MaxMissedNormal = opts.InactivityMs
	e.MaxMissedHold = opts.HoldInactivityMs

	raddr := &net.UDPAddr{IP: e.Codec.Remote.IP, Port: e.Codec.Remote.Port}
	e.Transport.SetRemoteAddr(raddr)

	ptimeMs := e.Codec.PtimeMs
	if ptimeMs <= 0 {
		ptimeMs = 20
	}
	e.Transport.Codecs = []media.Codec{{
		PayloadType: e.Codec.AgreedPT,
		Name:        e.Codec.IANAName,
		SampleRate:  e.Codec.ClockRate,
		SampleDur:   time.Duration(ptimeMs) * time.Millisecond,
	}}

	if err := e.Transport.StartRTP(3); err != nil {
		h.log.Error().Err(err).Str("kind", e.Kind.String()).Msg("failed to start RTP")
		return newProvisionError("start-rtp", e.Kind.String(), err)
	}

	if e.Secure.DTLSEnabled && len(e.Secure.DTLSCertificates) > 0 {
		h.startDTLSHandshake(e)
	}

	h.log.Debug().Str("kind", e.Kind.String()).Str("codec", e.Codec.IANAName).Msg("engine activated")
	return nil
}

// startDTLSHandshake runs the DTLS-SRTP handshake (media.MediaSession.
// DTLSHandshake, media/media_session.go) in the background once the
// transport socket is bound and the remote address is set: the handshake
// blocks on real network I/O, so Activate must not wait on it directly.
// Role selection mirrors RemoteSDP's own setup:active/passive/actpass
// handling via SecureSettings.DTLSIsClient.
func (h *MediaHandle) startDTLSHandshake(e *RtpEngine) {
	e.Transport.DTLSConf.Certificates = e.Secure.DTLSCertificates
	isClient := e.Secure.DTLSIsClient()
	go func() {
		if err := e.Transport.DTLSHandshake(isClient, e.Secure.DTLSFingerprints); err != nil {
			h.log.Error().Err(err).Str("kind", e.Kind.String()).Msg("dtls handshake failed")
			h.environment().Emit(Event{
				Kind:   EventDTLSHandshakeFailed,
				Handle: h,
				Kind2:  e.Kind,
				Detail: fmt.Sprintf("dtls handshake failed: %v", err),
			})
			return
		}
		h.log.Debug().Str("kind", e.Kind.String()).Msg("dtls handshake complete")
	}()
}

// ObserveArrival feeds one RTP packet arrival time into the engine's
// ptime auto-fix state machine, emitting an event through the handle's
// environment when the 120ms clamp triggers, i.e. when an observed ptime
// above 120ms is dropped (Open Question 3 decision). A ptime change at or
// below 120ms emits no event.
func (h *MediaHandle) ObserveArrival(e *RtpEngine, kind MediaKind, now time.Time) {
	newPtime, changed := e.observePacket(now)
	if changed || newPtime == 0 {
		return
	}
	h.log.Warn().Str("kind", kind.String()).Str("ptime", newPtime.String()).Msg("ptime auto-fix clamped")
	h.environment().Emit(Event{
		Kind:   EventPtimeAutoFixClamped,
		Handle: h,
		Kind2:  kind,
		Detail: fmt.Sprintf("ptime observation %s above 120ms ignored", newPtime),
	})
}

// CheckInactivity reports a MediaTimeoutError when no RTP has arrived on
// the engine within its configured threshold, using MaxMissedHold while
// the handle is in hold (§4.7 MOH/hold sources keep sending even without
// peer RTP, so the threshold is typically longer) and MaxMissedNormal
// otherwise. A zero threshold disables the check for that state.
func (h *MediaHandle) CheckInactivity(e *RtpEngine, now time.Time) error {
	if e.LastPacketAt.IsZero() {
		return nil
	}
	thresholdMs := e.MaxMissedNormal
	if h.HoldState() != HoldActive {
		thresholdMs = e.MaxMissedHold
	}
	if thresholdMs <= 0 {
		return nil
	}
	elapsed := now.Sub(e.LastPacketAt)
	if elapsed < time.Duration(thresholdMs)*time.Millisecond {
		return nil
	}
	h.log.Warn().Str("kind", e.Kind.String()).Str("elapsed", elapsed.String()).Msg("media timeout")
	h.environment().Emit(Event{Kind: EventMediaTimeout, Handle: h, Kind2: e.Kind, Detail: elapsed.String()})
	return newMediaTimeoutError(e.Kind.String(), elapsed)
}

// Teardown releases the engine's transport and returns its port to the
// allocator.
func (h *MediaHandle) Teardown(e *RtpEngine) error {
	if e.Transport == nil {
		return nil
	}
	local := e.Codec.Local
	err := e.Transport.Close()
	h.environment().ReleasePort(local.IP, local.Port)
	e.Transport = nil
	return err
}
