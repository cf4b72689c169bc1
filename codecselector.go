// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import "strings"

// TieBreakPolicy is the offerer/answerer preference-order rule the Codec
// Selector applies when both sides list more than one mutually acceptable
// codec, per §4.4.
type TieBreakPolicy int

const (
	// TieBreakGenerous prefers the remote side's first acceptable codec.
	TieBreakGenerous TieBreakPolicy = iota
	// TieBreakGreedy walks the local preference list outer-most and binds
	// the first local codec that matches anything remote offers.
	TieBreakGreedy
	// TieBreakScrooge is greedy but never falls back to nearMatchSalvage:
	// it binds the first local/remote match exactly as TieBreakGreedy
	// does, and the caller must skip near-match substitution for it.
	TieBreakScrooge
)

// candidateCodec is one entry offered or advertised on a media line,
// carrying enough of CodecParams to run the match rules without requiring
// a fully negotiated record yet.
type candidateCodec struct {
	Name      string
	ClockRate uint32
	Channels  int
	Bitrate   int
	PT        uint8
	FmtpIn    string
}

func canon(name string) string { return strings.ToLower(name) }

// noPT marks a candidateCodec built from a name-only preference (e.g.
// CodecPreference entries before any PT has been negotiated), so it never
// accidentally collides with a real static payload type of 0 (PCMU).
const noPT uint8 = 255

// staticMatch reports whether two candidates both used an RFC 3551 static
// payload type by number, which is sufficient to match regardless of name
// spelling (§4.4 "static PT by number").
func staticMatch(a, b candidateCodec) bool {
	if a.PT == noPT || b.PT == noPT {
		return false
	}
	return a.PT == b.PT && a.PT < 96
}

// nameClockMatch reports whether two candidates match by case-insensitive
// name and identical clock rate — the general dynamic-PT path. A zero
// ClockRate on either side is a wildcard: name-only preferences (no PT
// negotiated yet) carry no clock rate and still need to match a fully
// specified remote candidate.
func nameClockMatch(a, b candidateCodec) bool {
	if canon(a.Name) != canon(b.Name) {
		return false
	}
	if a.ClockRate == 0 || b.ClockRate == 0 {
		return true
	}
	return a.ClockRate == b.ClockRate
}

// bitrateDisqualified reports whether two otherwise-matching candidates
// should still be rejected because their bitrates disagree, except for
// codecs that carry bitrate in fmtp rather than in a separate field
// (iLBC/iSAC exception, §4.4).
func bitrateDisqualified(a, b candidateCodec) bool {
	name := canon(a.Name)
	if name == "ilbc" || name == "isac" {
		return false
	}
	if a.Bitrate == 0 || b.Bitrate == 0 {
		return false
	}
	return a.Bitrate != b.Bitrate
}

// g711SampleRateMatch enforces the G.711 family's requirement that sample
// rate must match exactly even though the name/PT might otherwise look
// compatible (§4.4).
func g711SampleRateMatch(a, b candidateCodec) bool {
	name := canon(a.Name)
	if name != "pcmu" && name != "pcma" {
		return true
	}
	if a.ClockRate == 0 || b.ClockRate == 0 {
		return true
	}
	return a.ClockRate == b.ClockRate
}

// codecCompatible runs the full Codec Selector match rule set for one
// pair of local/remote candidates.
func codecCompatible(local, remote candidateCodec) bool {
	if !staticMatch(local, remote) && !nameClockMatch(local, remote) {
		return false
	}
	if bitrateDisqualified(local, remote) {
		return false
	}
	if !g711SampleRateMatch(local, remote) {
		return false
	}
	return true
}

// SelectCodec runs the Codec Selector (§4.4) over an ordered local
// preference list and the remote's offered candidates, returning the
// chosen pair under the given tie-break policy. ok is false when no
// mutually compatible codec exists (negotiation failure, §4.1/§4.4).
func SelectCodec(localPref []candidateCodec, remote []candidateCodec, policy TieBreakPolicy) (local, chosen candidateCodec, ok bool) {
	var matches [][2]candidateCodec
	for _, l := range localPref {
		for _, r := range remote {
			if codecCompatible(l, r) {
				matches = append(matches, [2]candidateCodec{l, r})
			}
		}
	}
	if len(matches) == 0 {
		return candidateCodec{}, candidateCodec{}, false
	}

	switch policy {
	case TieBreakGreedy, TieBreakScrooge:
		// Both walk the local-preference-major match list and bind the
		// first hit; scrooge's distinguishing behavior (never substitute
		// a near-match) is enforced by the caller skipping
		// nearMatchSalvage, not by anything here.
		return matches[0][0], matches[0][1], true
	default: // TieBreakGenerous
		// Prefer remote's own ordering: matches is already built in
		// local-preference-major order, so re-sort by the remote list's
		// position of each match's remote entry.
		bestIdx := 0
		bestRemotePos := remotePos(remote, matches[0][1])
		for i, m := range matches[1:] {
			pos := remotePos(remote, m[1])
			if pos < bestRemotePos {
				bestRemotePos = pos
				bestIdx = i + 1
			}
		}
		return matches[bestIdx][0], matches[bestIdx][1], true
	}
}

func remotePos(remote []candidateCodec, c candidateCodec) int {
	for i, r := range remote {
		if r.PT == c.PT && canon(r.Name) == canon(c.Name) {
			return i
		}
	}
	return len(remote)
}

// nearMatchSalvage attempts a looser match when SelectCodec finds nothing:
// name-only equality ignoring clock rate, used as a last resort before
// declaring INCOMPATIBLE_DESTINATION (§4.4 "near-match salvage").
func nearMatchSalvage(localPref []candidateCodec, remote []candidateCodec) (local, chosen candidateCodec, ok bool) {
	for _, l := range localPref {
		for _, r := range remote {
			if canon(l.Name) == canon(r.Name) {
				return l, r, true
			}
		}
	}
	return candidateCodec{}, candidateCodec{}, false
}

// selectTelephoneEventPT picks the dynamic PT for telephone-event/8000
// from the remote's offered candidates, falling back to the well-known
// 101 when absent.
func selectTelephoneEventPT(remote []candidateCodec) uint8 {
	for _, r := range remote {
		if canon(r.Name) == "telephone-event" && r.ClockRate == 8000 {
			return r.PT
		}
	}
	return 101
}

// selectCNGPT picks the comfort-noise PT analogously.
func selectCNGPT(remote []candidateCodec) uint8 {
	for _, r := range remote {
		if canon(r.Name) == "cn" {
			return r.PT
		}
	}
	return 13
}
