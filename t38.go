// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// T38Outcome is the result of evaluating a T.38 re-invite against the
// current engine state, per §4.6.
type T38Outcome int

const (
	T38AlreadyNegotiated T38Outcome = iota
	T38Refused
	T38Passthrough
)

// T38Options carries the negotiated T.38 image-fax parameters, parsed from
// an "image/udptl" m-line's attributes (§4.6). Field names follow the
// ITU-T T.38 Annex D / RFC attribute spellings most T.38 UAs emit
// (T38FaxVersion, T38FaxMaxBitRate, etc.) since original_source carries no
// T.38 stack of its own to ground the exact attribute strings against —
// these are the well-known SDP names every T.38 gateway implementation
// uses, noted here rather than silently assumed.
type T38Options struct {
	Enabled       bool
	BypassEnabled bool

	Version            int
	MaxBitRate         int
	FillBitRemoval     bool
	TranscodingMMR     bool
	TranscodingJBIG    bool
	RateManagement     string // "transferredTCF" or "localTCF"
	MaxBuffer          int
	MaxDatagram        int
	VendorInfo         string

	RemoteIP   net.IP
	RemotePort int
}

// ParseT38Attrs reads the T38Fax* attributes off an image/udptl media
// section's attribute list plus the section's own connection
// address/port, producing the full option set EvaluateT38Switch and the
// passthrough path need (§4.6: "triggers T.38 option parsing: version, max
// bitrate, fill-bit-removal, transcoding flags, rate management, max
// buffer/datagram, vendor info, remote IP/port").
func ParseT38Attrs(attrs []string, remoteIP net.IP, remotePort int) T38Options {
	opts := T38Options{RemoteIP: remoteIP, RemotePort: remotePort}
	for _, a := range attrs {
		switch {
		case hasAttrPrefix(a, "T38FaxVersion:"):
			opts.Version, _ = strconv.Atoi(attrValue([]string{a}, "T38FaxVersion:"))
		case hasAttrPrefix(a, "T38FaxMaxBitRate:"):
			opts.MaxBitRate, _ = strconv.Atoi(attrValue([]string{a}, "T38FaxMaxBitRate:"))
		case a == "T38FaxFillBitRemoval":
			opts.FillBitRemoval = true
		case a == "T38FaxTranscodingMMR":
			opts.TranscodingMMR = true
		case a == "T38FaxTranscodingJBIG":
			opts.TranscodingJBIG = true
		case hasAttrPrefix(a, "T38FaxRateManagement:"):
			opts.RateManagement = attrValue([]string{a}, "T38FaxRateManagement:")
		case hasAttrPrefix(a, "T38FaxMaxBuffer:"):
			opts.MaxBuffer, _ = strconv.Atoi(attrValue([]string{a}, "T38FaxMaxBuffer:"))
		case hasAttrPrefix(a, "T38FaxMaxDatagram:"):
			opts.MaxDatagram, _ = strconv.Atoi(attrValue([]string{a}, "T38FaxMaxDatagram:"))
		case hasAttrPrefix(a, "T38VendorInfo:"):
			opts.VendorInfo = strings.TrimSpace(attrValue([]string{a}, "T38VendorInfo:"))
		}
	}
	return opts
}

// EvaluateT38Switch decides how to handle an inbound image/udptl m-line
// re-offer against the engine's current image-mode state. Grounded on
// original_source/src/switch_core_media.c's T.38 passthrough path.
func EvaluateT38Switch(e *RtpEngine, opts T38Options, alreadyImage bool) T38Outcome {
	if alreadyImage {
		return T38AlreadyNegotiated
	}
	if !opts.Enabled {
		return T38Refused
	}
	return T38Passthrough
}

// ApplyT38Passthrough implements §4.6's Passthrough branch end to end:
// require the partner leg exists and has answered, move this leg's audio
// engine onto the peer's image endpoint (subsequent audio runs as UDPTL,
// no RTP header rewriting), copy the negotiated options onto the partner,
// and queue a message asking the partner to emit a mirroring image
// m-line on its next generated SDP. Scenario 5 is this function plus the
// FlagT38Passthrough flag it sets.
func (h *MediaHandle) ApplyT38Passthrough(opts T38Options) error {
	partner := h.PartnerLeg()
	if partner == nil || !partner.Answered() {
		return newNegotiationError("t38-passthrough", "image", errPartnerNotAnswered)
	}

	opts.Enabled = true
	h.Audio.T38 = opts
	ApplyProxyRemoteAddr(&h.Audio, opts.RemoteIP, opts.RemotePort)

	partner.Audio.T38 = opts
	partner.queuePartnerMessage(PartnerMessage{Kind: PartnerEmitImageMLine, T38: opts})

	h.mu.Lock()
	h.flags |= FlagT38Passthrough
	h.mu.Unlock()
	return nil
}

var errPartnerNotAnswered = fmt.Errorf("t.38 passthrough requires an answered partner leg")

// ApplyProxyRemoteAddr updates an engine's remote endpoint for a
// passthrough media stream. Both audio and video engines are handled
// identically by ApplyProxyRemoteAddrAll, which calls it for audio and,
// when present, video — Open Question 2 resolves the original's
// audio-break-but-video-retry ambiguity by treating every media type
// uniformly, which Go's explicit per-engine calls make natural (no goto-driven early return needed).
func ApplyProxyRemoteAddr(e *RtpEngine, ip net.IP, port int) {
	e.Codec.Proxy = Endpoint{IP: ip, Port: port}
	if e.Transport != nil {
		e.Transport.SetRemoteAddr(&net.UDPAddr{IP: ip, Port: port})
	}
}

// ApplyProxyRemoteAddrAll applies a proxy remote-address change to every
// active engine on the handle (audio, and video when present).
func (h *MediaHandle) ApplyProxyRemoteAddrAll(ip net.IP, port int) {
	ApplyProxyRemoteAddr(&h.Audio, ip, port)
	if h.HasVideo {
		ApplyProxyRemoteAddr(&h.Video, ip, port)
	}
}
