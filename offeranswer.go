// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"fmt"

	"github.com/sipmedia/mediacore/media"
	"github.com/sipmedia/mediacore/media/sdp"
)

// ProcessRemoteSDP is the Offer/Answer Engine (§4.1): it reads session-
// level attributes, dispatches per media line to the Codec/Security/ICE
// negotiators, and updates the handle's hold state and per-engine
// CodecParams. Grounded on media/media_session.go's RemoteSDP control
// flow, generalized from the teacher's single hard-coded audio path to
// the audio/video/image(T.38) dispatch table the spec requires.
func (h *MediaHandle) ProcessRemoteSDP(raw []byte) error {
	var sd sdp.SessionDescription
	if err := sdp.Unmarshal(raw, &sd); err != nil {
		return newNegotiationError("parse-sdp", "session", err)
	}

	sessionCI, _ := sd.ConnectionInformation()
	webrtc := h.HasFlag(FlagWebRTCProfile)

	// Step 1: capture the origin username and OR in any RTP-bug flags it
	// (or the rest of the raw SDP) matches in MatchRTPBugs' substring
	// table (§4.1/§4.11). The manual rtp_manual_rtp_bugs override
	// (ApplyManualBugs) does not use this table.
	bugs := MatchRTPBugs(string(raw))
	if si, err := sd.SessionInformation(); err == nil {
		bugs |= MatchRTPBugs(si.Username)
	}
	h.Audio.setBug(bugs)
	if h.HasVideo {
		h.Video.setBug(bugs)
	}

	// Step 4: seed each engine's IceState from session-level candidate
	// lines before the per-m-line loop runs, so a session-level
	// a=candidate applies even to a media section that carries none of
	// its own.
	sessionIce := ParseRemoteCandidates(sd.Values("a"))
	h.Audio.IceIn = mergeIceSeed(h.Audio.IceIn, sessionIce)
	if h.HasVideo {
		h.Video.IceIn = mergeIceSeed(h.Video.IceIn, sessionIce)
	}

	if err := h.processMediaLine(&h.Audio, MediaKindAudio, sd, sessionCI, webrtc); err != nil {
		return err
	}

	if h.HasVideo {
		if err := h.processMediaLine(&h.Video, MediaKindVideo, sd, sessionCI, webrtc); err != nil {
			return err
		}
	}

	if err := h.processImageLine(sd, sessionCI); err != nil {
		return err
	}

	return nil
}

// processImageLine implements §4.1 step 5's "image over UDPTL → T.38
// switch" dispatch and §4.6's three outcomes. An absent m=image line is
// not an error — most calls never touch T.38.
func (h *MediaHandle) processImageLine(sd sdp.SessionDescription, sessionCI sdp.ConnectionInformation) error {
	md, err := sd.MediaDescription("image")
	if err != nil {
		return nil
	}
	attrs := sd.Values("a")
	opts := ParseT38Attrs(attrs, sessionCI.IP, md.Port)
	opts.Enabled = h.HasFlag(FlagT38Passthrough)

	alreadyImage := h.Audio.T38.Enabled
	switch EvaluateT38Switch(&h.Audio, opts, alreadyImage) {
	case T38AlreadyNegotiated:
		return nil
	case T38Refused:
		h.Audio.T38 = T38Options{}
		return newNegotiationError("t38-switch", "image", fmt.Errorf("t.38 passthrough not enabled for this leg"))
	default: // T38Passthrough
		h.log.Debug().Str("remote", opts.RemoteIP.String()).Int("port", opts.RemotePort).Msg("t.38 passthrough engaged")
		return h.ApplyT38Passthrough(opts)
	}
}

// mergeIceSeed folds session-level candidates into an engine's IceState
// without clobbering anything the media-level parse later adds, capping
// per component at MaxCandidatesPerComponent.
func mergeIceSeed(dst, seed IceState) IceState {
	if dst.Candidates == nil {
		dst = newIceState()
	}
	for comp, cands := range seed.Candidates {
		for _, c := range cands {
			if len(dst.Candidates[comp]) >= MaxCandidatesPerComponent {
				break
			}
			dst.Candidates[comp] = append(dst.Candidates[comp], c)
		}
	}
	return dst
}

func (h *MediaHandle) processMediaLine(e *RtpEngine, kind MediaKind, sd sdp.SessionDescription, sessionCI sdp.ConnectionInformation, webrtc bool) error {
	md, err := sd.MediaDescription(kind.String())
	if err != nil {
		// Absent media line: leave the engine untouched. Not every call
		// carries video/image; only audio is mandatory.
		if kind != MediaKindAudio {
			return nil
		}
		return newNegotiationError("find-media", kind.String(), err)
	}

	attrs := sd.Values("a")

	// media/sdp's flat parser does not distinguish a per-media "c=" line
	// from the session-level one, so the session-level connection address
	// is used for every media section (matches the teacher's own
	// single-media-section assumption).
	remoteIP := sessionCI.IP

	direction := sdpDirection(attrs)
	newHold := classifyHold(direction, remoteIP)
	if changed := h.transitionHold(newHold); changed {
		h.log.Debug().Str("kind", kind.String()).Str("state", newHold.String()).Msg("hold state changed")
		if newHold == HoldProtoHold {
			h.EngageMOH()
		}
	}

	codecs := make([]media.Codec, len(md.Formats))
	n, err := media.CodecsFromSDPRead(md.Formats, attrs, codecs)
	if err != nil {
		return newNegotiationError("codecs", kind.String(), err)
	}
	codecs = codecs[:n]
	if len(codecs) == 0 {
		return newNegotiationError("codecs", kind.String(), fmt.Errorf("no payload types offered"))
	}

	local := make([]candidateCodec, len(h.CodecPreference))
	for i, name := range h.CodecPreference {
		local[i] = candidateCodec{Name: name, PT: noPT}
	}
	remote := make([]candidateCodec, len(codecs))
	for i, c := range codecs {
		remote[i] = candidateCodec{Name: c.Name, ClockRate: c.SampleRate, Channels: c.NumChannels, PT: c.PayloadType}
	}

	// Stickiness (§4.1/Testable Property #3): a re-offer that changes
	// nothing this engine cares about is a no-op. If the bound codec is
	// still being offered and the remote endpoint hasn't moved, skip
	// codec/security/ICE renegotiation entirely rather than rerunning it
	// with identical inputs and identical outputs.
	remoteEP := Endpoint{IP: remoteIP, Port: md.Port}
	if last, ok := h.lastNegotiated[kind]; ok && e.Codec.Remote.Equal(remoteEP) && codecStillOffered(last, remote) {
		h.log.Debug().Str("kind", kind.String()).Msg("re-offer unchanged, skipping renegotiation")
		return nil
	}

	var chosen candidateCodec
	var ok bool
	switch {
	case len(local) == 0:
		// No local preference configured: accept the remote's first
		// offered codec outright.
		chosen, ok = remote[0], true
	default:
		_, chosen, ok = SelectCodec(local, remote, h.TieBreak)
		if !ok && h.TieBreak != TieBreakScrooge {
			// Scrooge never substitutes a near-match; generous/greedy do.
			_, chosen, ok = nearMatchSalvage(local, remote)
		}
	}
	if !ok {
		h.log.Warn().Str("kind", kind.String()).Strs("preference", h.CodecPreference).Msg("no codec in common with remote offer")
		return newNegotiationError("codec-select", kind.String(), fmt.Errorf("no codec in common with remote offer"))
	}
	h.log.Debug().Str("kind", kind.String()).Str("codec", chosen.Name).Uint8("pt", chosen.PT).Msg("codec negotiated")

	e.Codec.IANAName = chosen.Name
	e.Codec.CanonicalName = canon(chosen.Name)
	e.Codec.ClockRate = chosen.ClockRate
	e.Codec.AgreedPT = chosen.PT
	e.Codec.RecvPT = chosen.PT
	e.Codec.Remote = Endpoint{IP: remoteIP, Port: md.Port}

	// §4.8's PT list wants the telephony-event/CNG PT alongside the
	// bound codec "if dynamic and enabled" — pass_rfc2833 is the channel
	// variable that gates it (§6); a zero value on CodecParams means
	// "don't advertise one" for the SDP Generator, so a disabled leg
	// leaves both fields untouched.
	if pass2833(h.environment().Config()) {
		e.Codec.TelephoneEventPT = selectTelephoneEventPT(remote)
		e.Codec.CNGPT = selectCNGPT(remote)
	}

	mediaProfile := md.Proto
	cryptoLines := filterPrefix(attrs, "crypto:")
	fingerprints := fingerprintsFromAttrs(attrs)
	allowAVPQuirk := h.HasFlag(FlagT38Passthrough) == false
	if err := NegotiateSecurity(e, cryptoLines, fingerprints, webrtc, allowAVPQuirk, mediaProfile); err != nil {
		return err
	}
	if e.Secure.DTLSEnabled {
		e.Secure.DTLSSetupRole = attrValue(attrs, "setup:")
		if certs, err := h.environment().Certificate(); err == nil && len(certs) > 0 {
			if err := EnsureLocalCertificate(e, certs); err != nil {
				return err
			}
		}
	}

	e.IceIn = mergeIceSeed(e.IceIn, ParseRemoteCandidates(attrs))
	e.IceIn.RemoteUfrag = attrValue(attrs, "ice-ufrag:")
	e.IceIn.RemotePwd = attrValue(attrs, "ice-pwd:")
	e.IceIn.RTCPMux = containsAttr(attrs, "rtcp-mux")
	e.IceIn.RTCPMuxKnown = true

	// Step 3: zrtp-hash capture and partner-leg mirror (§4.1/§4.2).
	if hash := attrValue(attrs, "zrtp-hash:"); hash != "" {
		e.Secure.ZRTPHash = hash
		if partner := h.PartnerLeg(); partner != nil {
			if pe := partner.engineFor(kind); pe != nil {
				pe.Secure.ZRTPHash = hash
			}
		}
	}

	if h.lastNegotiated == nil {
		h.lastNegotiated = make(map[MediaKind]CodecParams)
	}
	h.lastNegotiated[kind] = e.Codec

	return nil
}

// codecStillOffered reports whether the remote's offered candidate list
// still contains the previously-bound codec (same canonical name, clock
// rate, and payload type) — the other half of the Stickiness check
// alongside the unchanged-endpoint test.
func codecStillOffered(last CodecParams, remote []candidateCodec) bool {
	for _, r := range remote {
		if canon(r.Name) == last.CanonicalName && r.ClockRate == last.ClockRate && r.PT == last.AgreedPT {
			return true
		}
	}
	return false
}

// pass2833 reports whether telephony-event/CNG PTs should be advertised,
// per the pass_rfc2833 channel variable (§6); absent or anything but
// "false" defaults to enabled.
func pass2833(cfg ConfigView) bool {
	if cfg == nil {
		return true
	}
	v, ok := cfg.Get("pass_rfc2833")
	return !ok || v != "false"
}

func sdpDirection(attrs []string) string {
	for _, a := range attrs {
		switch a {
		case "sendrecv", "sendonly", "recvonly", "inactive":
			return a
		}
	}
	return "sendrecv"
}

func filterPrefix(attrs []string, prefix string) []string {
	var out []string
	for _, a := range attrs {
		if hasAttrPrefix(a, prefix) {
			out = append(out, a)
		}
	}
	return out
}

func hasAttrPrefix(a, prefix string) bool {
	return len(a) >= len(prefix) && a[:len(prefix)] == prefix
}

func attrValue(attrs []string, prefix string) string {
	for _, a := range attrs {
		if hasAttrPrefix(a, prefix) {
			return a[len(prefix):]
		}
	}
	return ""
}

func containsAttr(attrs []string, name string) bool {
	for _, a := range attrs {
		if a == name {
			return true
		}
	}
	return false
}

// fingerprintsFromAttrs extracts "a=fingerprint:<alg> <hex>" lines into a
// lowercase-alg-keyed map.
func fingerprintsFromAttrs(attrs []string) map[string]string {
	var out map[string]string
	for _, a := range attrs {
		if !hasAttrPrefix(a, "fingerprint:") {
			continue
		}
		rest := a[len("fingerprint:"):]
		var alg, digest string
		for i := 0; i < len(rest); i++ {
			if rest[i] == ' ' {
				alg, digest = rest[:i], rest[i+1:]
				break
			}
		}
		if alg == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[lowerASCII(alg)] = digest
	}
	return out
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
