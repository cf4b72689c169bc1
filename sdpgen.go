// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

func sdpAddrType(ip net.IP) string {
	if ip.To4() != nil {
		return "IP4"
	}
	return "IP6"
}

// GenerateSDP is the SDP Generator (§4.8): it emits a complete session
// description from engine state, one m=audio block (or a SAVP+AVP pair
// for a dual-profile secure call) and, when negotiated, one or more
// m=video/m=image blocks. Grounded on media/media_session.go's SDP
// string-building, generalized from the teacher's single hard-coded
// profile/PT to the full per-media attribute set the spec requires.
func (h *MediaHandle) GenerateSDP(sessionID, sessionVersion uint64, originIP net.IP) ([]byte, error) {
	lines := []string{
		"v=0",
		fmt.Sprintf("o=- %d %d IN %s %s", sessionID, sessionVersion, sdpAddrType(originIP), originIP),
		"s=mediacore",
		fmt.Sprintf("c=IN %s %s", sdpAddrType(originIP), originIP),
		"t=0 0",
	}

	audioBlocks, err := h.generateMediaBlocks(&h.Audio, MediaKindAudio)
	if err != nil {
		return nil, err
	}
	for _, b := range audioBlocks {
		lines = append(lines, b...)
	}

	if h.HasVideo {
		videoBlocks, err := h.generateMediaBlocks(&h.Video, MediaKindVideo)
		if err != nil {
			return nil, err
		}
		for _, b := range videoBlocks {
			lines = append(lines, b...)
		}
	}

	if h.Audio.T38.Enabled {
		imageLines := h.generateImageBlock(&h.Audio)
		lines = append(lines, imageLines...)
	}

	sdp := strings.Join(lines, "\r\n") + "\r\n"
	h.setEmittedSDP(sdp)
	return []byte(sdp), nil
}

// generateMediaBlocks implements §4.8's "Multi-profile emission": a
// WebRTC leg gets a single SAVPF/UDP-TLS-SAVPF block; a secure
// non-WebRTC call gets a SAVP block followed by an AVP block (the AVP
// block carries no crypto line, Testable Property #2) unless
// FlagSecureOnly suppresses the fallback; a plain call gets one AVP
// block. It also fans out §4.8's "Multi-ptime emission" when generating
// an initial offer with no codec bound yet and the preference list spans
// more than one native ptime.
func (h *MediaHandle) generateMediaBlocks(e *RtpEngine, kind MediaKind) ([][]string, error) {
	webrtc := h.HasFlag(FlagWebRTCProfile)
	secure := e.Secure.Active()

	groups, err := h.ptimeGroups(e, kind, webrtc)
	if err != nil {
		return nil, err
	}

	var blocks [][]string
	for _, g := range groups {
		switch {
		case webrtc:
			profile := "RTP/SAVPF"
			if e.Secure.DTLSEnabled {
				profile = "UDP/TLS/RTP/SAVPF"
			}
			block, err := h.buildMediaBlock(e, kind, profile, true, g)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		case secure && !h.HasFlag(FlagSecureOnly):
			savp, err := h.buildMediaBlock(e, kind, "RTP/SAVP", true, g)
			if err != nil {
				return nil, err
			}
			avp, err := h.buildMediaBlock(e, kind, "RTP/AVP", false, g)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, savp, avp)
		case secure:
			block, err := h.buildMediaBlock(e, kind, "RTP/SAVP", true, g)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		default:
			block, err := h.buildMediaBlock(e, kind, "RTP/AVP", false, g)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

// ptEntry is one payload-type/name pair destined for an m-line's format
// list and its rtpmap line.
type ptEntry struct {
	PT   uint8
	Name string
	Rate uint32
	Fmtp string
}

// ptimeGroup is one audio block's worth of PT entries plus the ptime that
// applies to all of them.
type ptimeGroup struct {
	Entries []ptEntry
	PtimeMs int
}

// ptimeGroups builds the PT-entry groups for one engine's media blocks.
// When a codec is already bound (the common re-offer/answer path), there
// is exactly one group: the bound codec plus telephony-event/CNG. When
// nothing is bound yet (generating an initial offer from CodecPreference
// alone), the full preference list is used, split into one group per
// distinct native ptime per §4.8's multi-ptime rule — unless video,
// WebRTC, or FlagSuppressMultiPtime says otherwise, in which case it
// collapses to a single group carrying every PT.
func (h *MediaHandle) ptimeGroups(e *RtpEngine, kind MediaKind, webrtc bool) ([]ptimeGroup, error) {
	if e.Codec.IANAName != "" {
		entries := []ptEntry{{PT: e.Codec.AgreedPT, Name: e.Codec.IANAName, Rate: e.Codec.ClockRate, Fmtp: e.Codec.FmtpOut}}
		if e.Codec.TelephoneEventPT != 0 {
			entries = append(entries, ptEntry{PT: e.Codec.TelephoneEventPT, Name: "telephone-event", Rate: 8000, Fmtp: "0-16"})
		}
		if e.Codec.CNGPT != 0 {
			entries = append(entries, ptEntry{PT: e.Codec.CNGPT, Name: "CN", Rate: 8000})
		}
		return []ptimeGroup{{Entries: entries, PtimeMs: e.Codec.PtimeMs}}, nil
	}

	entries := h.preferenceListEntries()
	if len(entries) == 0 {
		return nil, newNegotiationError("generate-sdp", kind.String(), fmt.Errorf("no codec bound and no preference list to offer"))
	}

	if kind != MediaKindAudio || webrtc || h.HasFlag(FlagSuppressMultiPtime) {
		return []ptimeGroup{{Entries: dedupByPT(entries)}}, nil
	}

	byPtime := make(map[int][]ptEntry)
	var order []int
	for _, en := range entries {
		ptimeMs := h.nativePtime(en.Name)
		if _, ok := byPtime[ptimeMs]; !ok {
			order = append(order, ptimeMs)
		}
		byPtime[ptimeMs] = append(byPtime[ptimeMs], en)
	}
	if len(order) <= 1 {
		return []ptimeGroup{{Entries: dedupByPT(entries), PtimeMs: order[0]}}, nil
	}

	groups := make([]ptimeGroup, 0, len(order))
	for _, ptimeMs := range order {
		groups = append(groups, ptimeGroup{Entries: dedupByPT(byPtime[ptimeMs]), PtimeMs: ptimeMs})
	}
	return groups, nil
}

// nativePtime resolves a codec name's default packetization interval via
// the environment's CodecRegistry, falling back to 20ms (the universal
// audio default) when the registry has no opinion.
func (h *MediaHandle) nativePtime(name string) int {
	if params, ok := h.environment().Lookup(name); ok && params.PtimeMs > 0 {
		return params.PtimeMs
	}
	if ptimeMs, _ := (&CodecParams{CanonicalName: canon(name)}).DefaultBitrate(); ptimeMs > 0 {
		return ptimeMs
	}
	return 20
}

// preferenceListEntries resolves CodecPreference/ChosenPT into ptEntry
// values, assigning a dynamic PT from the handle's cursor when ChosenPT
// has nothing recorded yet for a position.
func (h *MediaHandle) preferenceListEntries() []ptEntry {
	entries := make([]ptEntry, 0, len(h.CodecPreference))
	for i, name := range h.CodecPreference {
		var pt uint8
		if i < len(h.ChosenPT) && h.ChosenPT[i] != 0 {
			pt = h.ChosenPT[i]
		} else if staticPT, ok := h.environment().StaticPayloadType(name); ok {
			pt = staticPT
		} else {
			pt = h.allocDynamicPT()
		}
		rate := uint32(8000)
		if params, ok := h.environment().Lookup(name); ok && params.ClockRate != 0 {
			rate = params.ClockRate
		}
		entries = append(entries, ptEntry{PT: pt, Name: name, Rate: rate})
	}
	return entries
}

// dedupByPT keeps the first entry seen for each payload type, preserving
// order, per §4.8's "full preference list (deduplicated by PT)".
func dedupByPT(entries []ptEntry) []ptEntry {
	seen := make(map[uint8]bool, len(entries))
	out := make([]ptEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.PT] {
			continue
		}
		seen[e.PT] = true
		out = append(out, e)
	}
	return out
}

// buildMediaBlock emits one m= section's lines for the given profile
// string. includeCrypto is false for the AVP half of a dual-profile
// secure block, keeping Testable Property #2 intact.
func (h *MediaHandle) buildMediaBlock(e *RtpEngine, kind MediaKind, profile string, includeCrypto bool, g ptimeGroup) ([]string, error) {
	if e.RTCPIntervalMs != 0 {
		if err := ValidateRTCPInterval(e.RTCPIntervalMs); err != nil {
			return nil, newNegotiationError("generate-sdp", kind.String(), err)
		}
	}

	ip := e.Codec.Local.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	port := e.Codec.Local.Port

	pts := make([]string, len(g.Entries))
	for i, en := range g.Entries {
		pts[i] = strconv.Itoa(int(en.PT))
	}

	lines := []string{
		fmt.Sprintf("m=%s %d %s %s", kind.String(), port, profile, strings.Join(pts, " ")),
		fmt.Sprintf("c=IN %s %s", sdpAddrType(ip), ip),
	}

	if kind == MediaKindVideo && e.Codec.Bitrate > 0 {
		lines = append(lines, fmt.Sprintf("b=AS:%d", e.Codec.Bitrate/1000))
	}

	for _, en := range g.Entries {
		lines = append(lines, rtpmapLineFor(en))
		if en.Fmtp != "" {
			lines = append(lines, fmt.Sprintf("a=fmtp:%d %s", en.PT, en.Fmtp))
		}
	}
	if kind == MediaKindVideo && canon(e.Codec.IANAName) == "vp8" {
		lines = append(lines, fmt.Sprintf("a=rtcp-fb:%d ccm fir", e.Codec.AgreedPT))
	}

	ptimeMs := g.PtimeMs
	if ptimeMs == 0 {
		ptimeMs = e.Codec.PtimeMs
	}
	if ptimeMs > 0 {
		lines = append(lines, fmt.Sprintf("a=ptime:%d", ptimeMs))
	}

	rtcpPort := port + 1
	if e.IceIn.RTCPMux {
		rtcpPort = port
		lines = append(lines, "a=rtcp-mux")
	}
	lines = append(lines, fmt.Sprintf("a=rtcp:%d", rtcpPort))

	if e.Secure.DTLSEnabled {
		lines = append(lines, "a=setup:actpass", "a=connection:new")
		if e.LocalFingerprint != "" {
			lines = append(lines, fmt.Sprintf("a=fingerprint:%s %s", e.FingerprintAlg, e.LocalFingerprint))
		}
	} else if includeCrypto && e.Secure.LocalKeyB64 != "" {
		lines = append(lines, fmt.Sprintf("a=crypto:%d %s inline:%s", e.Secure.CryptoTag, e.Secure.SendSuite.String(), e.Secure.LocalKeyB64))
	}

	if e.IceIn.LocalUfrag != "" {
		lines = append(lines,
			"a=ice-ufrag:"+e.IceIn.LocalUfrag,
			"a=ice-pwd:"+e.IceIn.LocalPwd,
		)
	}
	candLines, err := localCandidateLines(e)
	if err != nil {
		return nil, newNegotiationError("generate-sdp", kind.String(), err)
	}
	lines = append(lines, candLines...)

	if e.SSRCLocal != 0 {
		streamLabel := kind.String() + "0"
		lines = append(lines,
			fmt.Sprintf("a=ssrc:%d cname:mediacore", e.SSRCLocal),
			fmt.Sprintf("a=ssrc:%d msid:%s %s", e.SSRCLocal, h.msid, streamLabel),
			fmt.Sprintf("a=ssrc:%d mslabel:%s", e.SSRCLocal, h.msid),
			fmt.Sprintf("a=ssrc:%d label:%s", e.SSRCLocal, streamLabel),
		)
	}

	return lines, nil
}

// generateImageBlock emits the m=image/udptl block describing this
// engine's T.38 passthrough options (§4.6/§4.8), used both for the leg
// that switched to image itself and for the partner-leg mirroring
// request queued by ApplyT38Passthrough.
func (h *MediaHandle) generateImageBlock(e *RtpEngine) []string {
	ip := e.Codec.Local.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	port := e.Codec.Local.Port

	lines := []string{
		fmt.Sprintf("m=image %d udptl t38", port),
		fmt.Sprintf("c=IN %s %s", sdpAddrType(ip), ip),
		fmt.Sprintf("a=T38FaxVersion:%d", e.T38.Version),
	}
	if e.T38.MaxBitRate > 0 {
		lines = append(lines, fmt.Sprintf("a=T38FaxMaxBitRate:%d", e.T38.MaxBitRate))
	}
	if e.T38.FillBitRemoval {
		lines = append(lines, "a=T38FaxFillBitRemoval")
	}
	if e.T38.TranscodingMMR {
		lines = append(lines, "a=T38FaxTranscodingMMR")
	}
	if e.T38.TranscodingJBIG {
		lines = append(lines, "a=T38FaxTranscodingJBIG")
	}
	if e.T38.RateManagement != "" {
		lines = append(lines, fmt.Sprintf("a=T38FaxRateManagement:%s", e.T38.RateManagement))
	}
	if e.T38.MaxBuffer > 0 {
		lines = append(lines, fmt.Sprintf("a=T38FaxMaxBuffer:%d", e.T38.MaxBuffer))
	}
	if e.T38.MaxDatagram > 0 {
		lines = append(lines, fmt.Sprintf("a=T38FaxMaxDatagram:%d", e.T38.MaxDatagram))
	}
	if e.T38.VendorInfo != "" {
		lines = append(lines, fmt.Sprintf("a=T38VendorInfo:%s", e.T38.VendorInfo))
	}
	return lines
}

func rtpmapLineFor(en ptEntry) string {
	return fmt.Sprintf("a=rtpmap:%d %s/%d", en.PT, en.Name, en.Rate)
}

// localCandidateLines emits one host candidate per component (RTP always,
// RTCP too unless rtcp-mux is on) plus an srflx candidate whenever the
// locally bound address differs from the advertised external address
// (§4.8/Scenario 3). Candidates are also recorded onto IceOut so they're
// inspectable the same way IceIn's remote candidates are.
func localCandidateLines(e *RtpEngine) ([]string, error) {
	ip := e.Codec.Local.IP
	if ip == nil {
		return nil, nil
	}
	if e.IceOut.Candidates == nil {
		e.IceOut = newIceState()
	}

	comps := []IceComponent{IceComponentRTP}
	if !e.IceIn.RTCPMux {
		comps = append(comps, IceComponentRTCP)
	}

	var lines []string
	for _, comp := range comps {
		port := e.Codec.Local.Port
		if comp == IceComponentRTCP {
			port++
		}
		host, err := GenerateLocalCandidate(comp, ip, port)
		if err != nil {
			return nil, err
		}
		e.IceOut.Candidates[comp] = append(e.IceOut.Candidates[comp], host)
		lines = append(lines, formatCandidateLine(host))

		adv := e.Codec.Advertised
		if adv.IP != nil && !adv.IP.Equal(ip) {
			srflxPort := adv.Port
			if comp == IceComponentRTCP {
				srflxPort++
			}
			srflx := IceCandidate{
				Foundation:  host.Foundation,
				Component:   comp,
				Transport:   "udp",
				Priority:    candidatePriority(IceCandidateSrflx, comp),
				IP:          adv.IP,
				Port:        srflxPort,
				Type:        IceCandidateSrflx,
				RelatedIP:   ip,
				RelatedPort: port,
			}
			e.IceOut.Candidates[comp] = append(e.IceOut.Candidates[comp], srflx)
			lines = append(lines, formatCandidateLine(srflx))
		}
	}
	return lines, nil
}

func formatCandidateLine(c IceCandidate) string {
	line := fmt.Sprintf("a=candidate:%s %d udp %d %s %d typ %s",
		c.Foundation, c.Component, c.Priority, c.IP, c.Port, c.Type.String())
	if c.RelatedIP != nil {
		line += fmt.Sprintf(" raddr %s rport %d", c.RelatedIP, c.RelatedPort)
	}
	return line
}
