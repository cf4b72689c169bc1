// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"crypto/tls"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnvironment is a minimal MediaEnvironment test double that records
// MOH/presence/event calls so hold-transition side effects are
// observable without a real collaborator bundle.
type fakeEnvironment struct {
	mohStarted  []*MediaHandle
	mohStopped  []*MediaHandle
	presence    map[*MediaHandle]string
	events      []Event
}

func newFakeEnvironment() *fakeEnvironment {
	return &fakeEnvironment{presence: make(map[*MediaHandle]string)}
}

func (f *fakeEnvironment) Certificate() ([]tls.Certificate, error)             { return nil, nil }
func (f *fakeEnvironment) AllocatePort(ip net.IP) (int, error)                 { return 0, nil }
func (f *fakeEnvironment) ReleasePort(ip net.IP, port int)                     {}
func (f *fakeEnvironment) ExternalAddr(ip net.IP, port int) (net.IP, int, error) { return ip, port, nil }
func (f *fakeEnvironment) ResolveExternal(ip net.IP, port int) (net.IP, int, error) {
	return ip, port, nil
}
func (f *fakeEnvironment) Lookup(name string) (CodecParams, bool)      { return CodecParams{}, false }
func (f *fakeEnvironment) StaticPayloadType(name string) (uint8, bool) { return 0, false }
func (f *fakeEnvironment) Emit(e Event)                                { f.events = append(f.events, e) }
func (f *fakeEnvironment) StartMOH(h *MediaHandle) error               { f.mohStarted = append(f.mohStarted, h); return nil }
func (f *fakeEnvironment) StopMOH(h *MediaHandle) error                { f.mohStopped = append(f.mohStopped, h); return nil }
func (f *fakeEnvironment) SetPresence(h *MediaHandle, state string)    { f.presence[h] = state }
func (f *fakeEnvironment) Config() ConfigView                          { return NewConfigView(nil) }

func TestZeroAddrHold(t *testing.T) {
	assert.True(t, zeroAddrHold(net.ParseIP("0.0.0.0")))
	assert.True(t, zeroAddrHold(net.IPv6zero))
	assert.False(t, zeroAddrHold(net.ParseIP("192.168.1.1")))
	assert.False(t, zeroAddrHold(nil))
}

func TestClassifyHoldZeroAddrOverridesDirection(t *testing.T) {
	assert.Equal(t, HoldProtoHold, classifyHold("sendrecv", net.ParseIP("0.0.0.0")))
}

func TestClassifyHoldBySendonly(t *testing.T) {
	assert.Equal(t, HoldProtoHold, classifyHold("sendonly", net.ParseIP("192.168.1.1")))
	assert.Equal(t, HoldActive, classifyHold("sendrecv", net.ParseIP("192.168.1.1")))
}

func TestTransitionHoldReportsChange(t *testing.T) {
	h := NewMediaHandle()
	assert.True(t, h.transitionHold(HoldProtoHold))
	assert.False(t, h.transitionHold(HoldProtoHold))
	assert.Equal(t, HoldProtoHold, h.HoldState())
	assert.True(t, h.transitionHold(HoldActive))
}

func TestTransitionHoldDisabledByFlag(t *testing.T) {
	h := NewMediaHandle(WithFlags(FlagDisableHold))
	assert.False(t, h.transitionHold(HoldProtoHold))
	assert.Equal(t, HoldActive, h.HoldState())
}

func TestTransitionHoldMarksPresenceAndEmitsEvent(t *testing.T) {
	env := newFakeEnvironment()
	h := NewMediaHandle(WithEnvironment(env))

	require.True(t, h.transitionHold(HoldProtoHold))
	assert.Equal(t, "hold", env.presence[h])
	require.Len(t, env.events, 1)
	assert.Equal(t, EventHoldStateChanged, env.events[0].Kind)

	require.True(t, h.transitionHold(HoldActive))
	assert.Equal(t, "unhold", env.presence[h])
}

func TestTransitionHoldCapsMissedThreshold(t *testing.T) {
	h := NewMediaHandle()
	h.Audio.MaxMissedNormal = 5000
	require.True(t, h.transitionHold(HoldProtoHold))
	assert.Equal(t, 5000, h.Audio.MaxMissedHold)
}

// TestEngageMOHBroadcastsToPartner matches Scenario 6: entering
// HoldHeldWithMOH starts MOH on the partner leg, not this leg.
func TestEngageMOHBroadcastsToPartner(t *testing.T) {
	env := newFakeEnvironment()
	h := NewMediaHandle(WithEnvironment(env))
	partner := NewMediaHandle()
	h.SetPartnerLeg(partner)

	require.True(t, h.transitionHold(HoldProtoHold))
	require.True(t, h.EngageMOH())
	assert.Equal(t, HoldHeldWithMOH, h.HoldState())
	require.Len(t, env.mohStarted, 1)
	assert.Same(t, partner, env.mohStarted[0])

	require.True(t, h.transitionHold(HoldActive))
	require.Len(t, env.mohStopped, 1)
	assert.Same(t, partner, env.mohStopped[0])
}

func TestEngageMOHSuppressedByFlag(t *testing.T) {
	h := NewMediaHandle(WithFlags(FlagSuppressMOH))
	require.True(t, h.transitionHold(HoldProtoHold))
	assert.False(t, h.EngageMOH())
	assert.Equal(t, HoldProtoHold, h.HoldState())
}
