// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchRTPBugsCaseInsensitive(t *testing.T) {
	bugs := MatchRTPBugs("Some UA: cisco/SPA504G")
	assert.True(t, bugs&RTPBugCiscoSkipMarkBit != 0)
	assert.False(t, bugs&RTPBugIgnoreMarkBit != 0)
}

func TestMatchRTPBugsAccumulatesMultiple(t *testing.T) {
	bugs := MatchRTPBugs("Avaya 96xx Cisco-CP")
	assert.True(t, bugs&RTPBugIgnoreMarkBit != 0)
	assert.True(t, bugs&RTPBugCiscoSkipMarkBit != 0)
}

func TestParseManualBugNamesIgnoresUnknown(t *testing.T) {
	bugs := parseManualBugNames("NEVER_SEND_MARKER, BOGUS_NAME ,START_SEQ_AT_ZERO")
	assert.Equal(t, RTPBugNeverSendMarker|RTPBugStartSeqAtZero, bugs)
}
