// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateT38SwitchAlreadyNegotiated(t *testing.T) {
	e := &RtpEngine{}
	out := EvaluateT38Switch(e, T38Options{Enabled: true}, true)
	assert.Equal(t, T38AlreadyNegotiated, out)
}

func TestEvaluateT38SwitchRefusedWhenDisabled(t *testing.T) {
	e := &RtpEngine{}
	out := EvaluateT38Switch(e, T38Options{Enabled: false}, false)
	assert.Equal(t, T38Refused, out)
}

func TestEvaluateT38SwitchPassthrough(t *testing.T) {
	e := &RtpEngine{}
	out := EvaluateT38Switch(e, T38Options{Enabled: true}, false)
	assert.Equal(t, T38Passthrough, out)
}

func TestParseT38AttrsReadsFullOptionSet(t *testing.T) {
	attrs := []string{
		"T38FaxVersion:0",
		"T38FaxMaxBitRate:14400",
		"T38FaxFillBitRemoval",
		"T38FaxTranscodingMMR",
		"T38FaxRateManagement:transferredTCF",
		"T38FaxMaxBuffer:2000",
		"T38FaxMaxDatagram:400",
		"T38VendorInfo:0 0 0",
	}
	opts := ParseT38Attrs(attrs, net.ParseIP("203.0.113.9"), 5006)
	assert.Equal(t, 0, opts.Version)
	assert.Equal(t, 14400, opts.MaxBitRate)
	assert.True(t, opts.FillBitRemoval)
	assert.True(t, opts.TranscodingMMR)
	assert.False(t, opts.TranscodingJBIG)
	assert.Equal(t, "transferredTCF", opts.RateManagement)
	assert.Equal(t, 2000, opts.MaxBuffer)
	assert.Equal(t, 400, opts.MaxDatagram)
	assert.Equal(t, "203.0.113.9", opts.RemoteIP.String())
	assert.Equal(t, 5006, opts.RemotePort)
}

// TestApplyT38PassthroughRequiresAnsweredPartner matches Scenario 5's
// partner-leg precondition: passthrough refuses when no partner leg has
// answered yet.
func TestApplyT38PassthroughRequiresAnsweredPartner(t *testing.T) {
	h := NewMediaHandle()
	err := h.ApplyT38Passthrough(T38Options{RemoteIP: net.ParseIP("203.0.113.9"), RemotePort: 5006})
	require.Error(t, err)
}

// TestApplyT38PassthroughUpdatesLegAndQueuesPartnerMessage matches
// Scenario 5 end to end: leg A's audio remote endpoint moves to the
// peer's image address, the partner's T.38 options are copied, and a
// mirroring-image-m-line request is queued for the partner.
func TestApplyT38PassthroughUpdatesLegAndQueuesPartnerMessage(t *testing.T) {
	a := NewMediaHandle(WithFlags(FlagT38Passthrough))
	b := NewMediaHandle()
	b.MarkAnswered()
	a.SetPartnerLeg(b)

	opts := T38Options{RemoteIP: net.ParseIP("203.0.113.9"), RemotePort: 5006, MaxBitRate: 14400}
	require.NoError(t, a.ApplyT38Passthrough(opts))

	assert.Equal(t, "203.0.113.9", a.Audio.Codec.Proxy.IP.String())
	assert.Equal(t, 5006, a.Audio.Codec.Proxy.Port)
	assert.True(t, a.HasFlag(FlagT38Passthrough))
	assert.Equal(t, 14400, b.Audio.T38.MaxBitRate)

	msgs := b.DrainPartnerMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, PartnerEmitImageMLine, msgs[0].Kind)
}

func TestApplyProxyRemoteAddrAllUpdatesBothEngines(t *testing.T) {
	h := NewMediaHandle(WithVideo())
	ip := net.ParseIP("203.0.113.7")
	h.ApplyProxyRemoteAddrAll(ip, 30000)

	assert.Equal(t, ip.String(), h.Audio.Codec.Proxy.IP.String())
	assert.Equal(t, 30000, h.Audio.Codec.Proxy.Port)
	assert.Equal(t, ip.String(), h.Video.Codec.Proxy.IP.String())
	assert.Equal(t, 30000, h.Video.Codec.Proxy.Port)
}
