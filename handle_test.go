// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMediaHandleDefaults(t *testing.T) {
	h := NewMediaHandle()
	require.NotEqual(t, [16]byte{}, h.ID)
	assert.False(t, h.HasVideo)
	assert.Equal(t, HoldActive, h.HoldState())
	assert.Equal(t, uint8(dynamicPTStart), h.nextDynamicPT)
}

func TestHandleOptionsCompose(t *testing.T) {
	h := NewMediaHandle(
		WithVideo(),
		WithFlags(FlagRenegOnHold|FlagRTCPMuxPreferred),
		WithCodecPreference([]string{"opus", "PCMU"}),
	)
	assert.True(t, h.HasVideo)
	assert.True(t, h.HasFlag(FlagRenegOnHold))
	assert.True(t, h.HasFlag(FlagRTCPMuxPreferred))
	assert.False(t, h.HasFlag(FlagWebRTCProfile))
	assert.Equal(t, []string{"opus", "PCMU"}, h.CodecPreference)
}

func TestAllocDynamicPTWrapsAt127(t *testing.T) {
	h := NewMediaHandle()
	h.nextDynamicPT = 127
	first := h.allocDynamicPT()
	second := h.allocDynamicPT()
	assert.Equal(t, uint8(127), first)
	assert.Equal(t, uint8(dynamicPTStart), second)
}

func TestEngineForVideoNilWithoutFlag(t *testing.T) {
	h := NewMediaHandle()
	assert.Nil(t, h.engineFor(MediaKindVideo))

	h2 := NewMediaHandle(WithVideo())
	assert.NotNil(t, h2.engineFor(MediaKindVideo))
	assert.Same(t, &h2.Video, h2.engineFor(MediaKindVideo))
}

func TestEmittedSDPRoundTrip(t *testing.T) {
	h := NewMediaHandle()
	assert.Equal(t, "", h.EmittedSDP())
	h.setEmittedSDP("v=0\r\n")
	assert.Equal(t, "v=0\r\n", h.EmittedSDP())
}
