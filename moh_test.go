// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilenceMOHProviderStartWritesFramesUntilStopped(t *testing.T) {
	h := NewMediaHandle()
	loopback := net.IPv4(127, 0, 0, 1)
	require.NoError(t, ProvisionTransport(h, &h.Audio, loopback))
	defer h.Teardown(&h.Audio)

	h.Audio.Codec.AgreedPT = 0
	h.Audio.Codec.IANAName = "PCMU"
	h.Audio.Codec.ClockRate = 8000
	h.Audio.Codec.Remote = Endpoint{IP: loopback, Port: h.Audio.Codec.Local.Port}
	require.NoError(t, h.Activate(&h.Audio, ActivateOptions{}))

	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: loopback, Port: 0})
	require.NoError(t, err)
	defer listener.Close()
	h.Audio.Transport.SetRemoteAddr(&net.UDPAddr{IP: loopback, Port: listener.LocalAddr().(*net.UDPAddr).Port})

	p := NewSilenceMOHProvider()
	require.NoError(t, p.StartMOH(h))

	buf := make([]byte, 1500)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := listener.Read(buf)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	deadline := time.Now().Add(time.Second)
	for p.WriteStats(h).PacketsCount == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, p.WriteStats(h).PacketsCount, uint32(0))

	require.NoError(t, p.StopMOH(h))
	require.NoError(t, p.StopMOH(h))
}

func TestSilenceMOHProviderRequiresProvisionedTransport(t *testing.T) {
	h := NewMediaHandle()
	p := NewSilenceMOHProvider()
	assert.Error(t, p.StartMOH(h))
}
