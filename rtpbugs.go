// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import "strings"

// bugMatch pairs a case-insensitive User-Agent/remote-SDP substring with
// the RTP workaround it implies, per §4.11's supplemented feature list
// (ported from original_source's switch_rtp bug table).
type bugMatch struct {
	substring string
	bug       RTPBug
}

var bugTable = []bugMatch{
	{"Cisco", RTPBugCiscoSkipMarkBit},
	{"Sonus_UAC", RTPBugSonusSendInvalidTimestamp2833},
	{"Avaya", RTPBugIgnoreMarkBit},
	{"Polycom", RTPBugNeverSendMarker},
	{"Linksys/", RTPBugStartSeqAtZero},
	{"Grandstream", RTPBugSendLinearTimestamps},
}

// MatchRTPBugs OR-accumulates every bug whose substring appears (case
// insensitively) anywhere in haystack, typically the remote SDP's
// a=useragent line or the SIP User-Agent header forwarded in as a channel
// variable.
func MatchRTPBugs(haystack string) RTPBug {
	var bugs RTPBug
	lower := strings.ToLower(haystack)
	for _, m := range bugTable {
		if strings.Contains(lower, strings.ToLower(m.substring)) {
			bugs |= m.bug
		}
	}
	return bugs
}

// parseManualBugNames parses the comma-separated rtp_manual_rtp_bugs
// channel variable value into a bug mask, ignoring unrecognized tokens.
func parseManualBugNames(csv string) RTPBug {
	var bugs RTPBug
	for _, tok := range strings.Split(csv, ",") {
		switch strings.TrimSpace(tok) {
		case "CISCO_SKIP_MARK_BIT_2833":
			bugs |= RTPBugCiscoSkipMarkBit
		case "SONUS_SEND_INVALID_TIMESTAMP_2833":
			bugs |= RTPBugSonusSendInvalidTimestamp2833
		case "IGNORE_MARK_BIT":
			bugs |= RTPBugIgnoreMarkBit
		case "START_SEQ_AT_ZERO":
			bugs |= RTPBugStartSeqAtZero
		case "NEVER_SEND_MARKER":
			bugs |= RTPBugNeverSendMarker
		case "ALWAYS_AUTO_ADJUST":
			bugs |= RTPBugAlwaysAutoAdjust
		case "SEND_LINEAR_TIMESTAMPS":
			bugs |= RTPBugSendLinearTimestamps
		case "ACCEPT_ANY_PACKET":
			bugs |= RTPBugAcceptAnyPacket
		}
	}
	return bugs
}
