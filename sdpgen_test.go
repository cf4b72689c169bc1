// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func negotiatedHandle(t *testing.T, opts ...HandleOption) *MediaHandle {
	t.Helper()
	h := NewMediaHandle(append([]HandleOption{WithCodecPreference([]string{"PCMA"})}, opts...)...)
	require.NoError(t, h.ProcessRemoteSDP([]byte(offerSDP)))
	h.Audio.Codec.Local = Endpoint{IP: net.ParseIP("10.0.0.5"), Port: 20000}
	return h
}

// TestGenerateSDPRTCPPortMuxVsNonMux covers Testable Property #7: mux on
// puts one port number in both the m-line and a=rtcp:; mux off puts the
// RTCP port at media port + 1.
func TestGenerateSDPRTCPPortMuxVsNonMux(t *testing.T) {
	h := negotiatedHandle(t)
	h.Audio.IceIn.RTCPMux = false
	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	assert.Contains(t, string(sdp), "a=rtcp:20001")

	h2 := negotiatedHandle(t)
	h2.Audio.IceIn.RTCPMux = true
	sdp2, err := h2.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	assert.Contains(t, string(sdp2), "a=rtcp:20000")
	assert.Contains(t, string(sdp2), "a=rtcp-mux")
}

// TestGenerateSDPDualProfileForSecureCall covers the §4.8 "Multi-profile
// emission" rule and Testable Property #2: a secure, non-WebRTC call
// emits a SAVP block with crypto followed by an AVP block with none.
func TestGenerateSDPDualProfileForSecureCall(t *testing.T) {
	h := negotiatedHandle(t)
	require.NoError(t, h.Audio.Secure.GenerateLocalKey(SRTPSuiteAES_CM_128_HMAC_SHA1_80))

	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	s := string(sdp)

	savpIdx := strings.Index(s, "m=audio 20000 RTP/SAVP")
	avpIdx := strings.Index(s, "m=audio 20000 RTP/AVP")
	require.NotEqual(t, -1, savpIdx)
	require.NotEqual(t, -1, avpIdx)
	assert.Less(t, savpIdx, avpIdx)

	avpBlock := s[avpIdx:]
	assert.NotContains(t, avpBlock, "a=crypto:")
	savpBlock := s[savpIdx:avpIdx]
	assert.Contains(t, savpBlock, "a=crypto:")
}

func TestGenerateSDPSecureOnlySuppressesAVPFallback(t *testing.T) {
	h := negotiatedHandle(t, WithFlags(FlagSecureOnly))
	require.NoError(t, h.Audio.Secure.GenerateLocalKey(SRTPSuiteAES_CM_128_HMAC_SHA1_80))

	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	s := string(sdp)
	assert.Equal(t, 1, strings.Count(s, "m=audio"))
	assert.Contains(t, s, "RTP/SAVP")
}

func TestGenerateSDPWebRTCProfileSingleSAVPFBlock(t *testing.T) {
	h := negotiatedHandle(t, WithFlags(FlagWebRTCProfile))
	require.NoError(t, h.Audio.Secure.GenerateLocalKey(SRTPSuiteAES_CM_128_HMAC_SHA1_80))

	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	s := string(sdp)
	assert.Equal(t, 1, strings.Count(s, "m=audio"))
	assert.Contains(t, s, "RTP/SAVPF")
}

// TestGenerateSDPEmitsSrflxWhenAdvertisedDiffersFromLocal covers Scenario
// 3's "emitted local SDP carries both a host and an srflx candidate if
// the local bound address differs from its advertised address".
func TestGenerateSDPEmitsSrflxWhenAdvertisedDiffersFromLocal(t *testing.T) {
	h := negotiatedHandle(t)
	h.Audio.Codec.Advertised = Endpoint{IP: net.ParseIP("203.0.113.7"), Port: 30000}

	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	s := string(sdp)
	assert.Contains(t, s, "typ host")
	assert.Contains(t, s, "typ srflx")
	assert.Contains(t, s, "raddr 10.0.0.5 rport 20000")
}

func TestGenerateSDPNoSrflxWhenAdvertisedMatchesLocal(t *testing.T) {
	h := negotiatedHandle(t)
	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	s := string(sdp)
	assert.Contains(t, s, "typ host")
	assert.NotContains(t, s, "typ srflx")
}

// TestGenerateSDPSSRCLinesCarryMsidAndLabel covers §4.8's "one cname, one
// msid, one mslabel, one label per stream" requirement.
func TestGenerateSDPSSRCLinesCarryMsidAndLabel(t *testing.T) {
	h := negotiatedHandle(t)
	h.Audio.SSRCLocal = 12345

	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	s := string(sdp)
	assert.Contains(t, s, "a=ssrc:12345 cname:mediacore")
	assert.Contains(t, s, "a=ssrc:12345 mslabel:")
	assert.Contains(t, s, "a=ssrc:12345 label:audio0")
	assert.Contains(t, s, "a=ssrc:12345 msid:")
}

// TestGenerateSDPIncludesTelephoneEventAndCNGPT verifies the bound-codec
// PT list carries telephony-event/CNG alongside the main codec per §4.8.
func TestGenerateSDPIncludesTelephoneEventAndCNGPT(t *testing.T) {
	h := negotiatedHandle(t)
	h.Audio.Codec.TelephoneEventPT = 101
	h.Audio.Codec.CNGPT = 13

	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	s := string(sdp)
	assert.Contains(t, s, "m=audio 20000 RTP/AVP 8 101 13")
	assert.Contains(t, s, "a=rtpmap:101 telephone-event/8000")
	assert.Contains(t, s, "a=rtpmap:13 CN/8000")
}

func TestProcessRemoteSDPPopulatesTelephoneEventPTFromOffer(t *testing.T) {
	h := NewMediaHandle(WithCodecPreference([]string{"PCMA"}))
	require.NoError(t, h.ProcessRemoteSDP([]byte(offerSDP)))
	assert.Equal(t, uint8(101), h.Audio.Codec.TelephoneEventPT)
}

func TestVideoBlockEmitsBandwidthAndCCMFirForVP8(t *testing.T) {
	h := NewMediaHandle(WithVideo(), WithCodecPreference([]string{"PCMA"}))
	require.NoError(t, h.ProcessRemoteSDP([]byte(offerSDP)))
	h.Audio.Codec.Local = Endpoint{IP: net.ParseIP("10.0.0.5"), Port: 20000}
	h.Video.Codec.IANAName = "VP8"
	h.Video.Codec.CanonicalName = "vp8"
	h.Video.Codec.AgreedPT = 96
	h.Video.Codec.ClockRate = 90000
	h.Video.Codec.Bitrate = 512000
	h.Video.Codec.Local = Endpoint{IP: net.ParseIP("10.0.0.5"), Port: 22000}

	sdp, err := h.GenerateSDP(1, 1, net.ParseIP("10.0.0.5"))
	require.NoError(t, err)
	s := string(sdp)
	assert.Contains(t, s, "b=AS:512")
	assert.Contains(t, s, "a=rtcp-fb:96 ccm fir")
}
