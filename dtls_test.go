// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventCollectingEnvironment is a MediaEnvironment test double whose only
// job is to record Emit calls safely across goroutines, for observing
// startDTLSHandshake's background failure reporting.
type eventCollectingEnvironment struct {
	noopEnvironment
	mu     sync.Mutex
	events []Event
}

func (f *eventCollectingEnvironment) Emit(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *eventCollectingEnvironment) hasEvent(kind EventKind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// genSelfSignedCert produces an ephemeral self-signed certificate for
// tests, mirroring media/dtls_test.go's helper of the same name (kept
// package-local since tls.Certificate carries an unexported private key
// type that can't cross a package boundary as a shared fixture).
func genSelfSignedCert(t *testing.T, cn string) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
}

// TestDTLSHandshakeActivatesSRTP exercises the full DTLS-SRTP path over a
// loopback pair of provisioned transports: one engine runs the server
// role (remote offered "active"), the other the client role, each with
// its own EnsureLocalCertificate-recorded certificate. Activate's
// startDTLSHandshake runs the handshake in the background; success is
// observed as the absence of an EventDTLSHandshakeFailed report.
func TestDTLSHandshakeActivatesSRTP(t *testing.T) {
	envServer := &eventCollectingEnvironment{}
	envClient := &eventCollectingEnvironment{}
	hServer := NewMediaHandle(WithEnvironment(envServer))
	hClient := NewMediaHandle(WithEnvironment(envClient))
	eServer := &RtpEngine{Kind: MediaKindAudio}
	eClient := &RtpEngine{Kind: MediaKindAudio}

	loopback := net.IPv4(127, 0, 0, 1)
	require.NoError(t, ProvisionTransport(hServer, eServer, loopback))
	require.NoError(t, ProvisionTransport(hClient, eClient, loopback))
	defer hServer.Teardown(eServer)
	defer hClient.Teardown(eClient)

	serverCert := genSelfSignedCert(t, "server")
	clientCert := genSelfSignedCert(t, "client")
	require.NoError(t, EnsureLocalCertificate(eServer, []tls.Certificate{serverCert}))
	require.NoError(t, EnsureLocalCertificate(eClient, []tls.Certificate{clientCert}))

	eServer.Secure.DTLSEnabled = true
	eServer.Secure.DTLSSetupRole = "active" // remote offered active, so we are the server
	eServer.Secure.DTLSFingerprints = map[string]string{"sha-256": eClient.LocalFingerprint}
	eServer.Codec.AgreedPT = 0
	eServer.Codec.IANAName = "PCMU"
	eServer.Codec.ClockRate = 8000
	eServer.Codec.Remote = Endpoint{IP: loopback, Port: eClient.Codec.Local.Port}

	eClient.Secure.DTLSEnabled = true
	eClient.Secure.DTLSSetupRole = "passive" // remote offered passive, so we are the client
	eClient.Secure.DTLSFingerprints = map[string]string{"sha-256": eServer.LocalFingerprint}
	eClient.Codec.AgreedPT = 0
	eClient.Codec.IANAName = "PCMU"
	eClient.Codec.ClockRate = 8000
	eClient.Codec.Remote = Endpoint{IP: loopback, Port: eServer.Codec.Local.Port}

	assert.False(t, eServer.Secure.DTLSIsClient())
	assert.True(t, eClient.Secure.DTLSIsClient())

	require.NoError(t, hServer.Activate(eServer, ActivateOptions{}))
	require.NoError(t, hClient.Activate(eClient, ActivateOptions{}))

	time.Sleep(500 * time.Millisecond)
	assert.False(t, envServer.hasEvent(EventDTLSHandshakeFailed), "server-side dtls handshake reported failure")
	assert.False(t, envClient.hasEvent(EventDTLSHandshakeFailed), "client-side dtls handshake reported failure")
}

func TestEnsureLocalCertificateRequiresNonEmptySlice(t *testing.T) {
	e := &RtpEngine{Kind: MediaKindAudio}
	cert := genSelfSignedCert(t, "solo")
	require.NoError(t, EnsureLocalCertificate(e, []tls.Certificate{cert}))
	assert.NotEmpty(t, e.LocalFingerprint)
	assert.Equal(t, "sha-256", e.FingerprintAlg)

	assert.Error(t, EnsureLocalCertificate(&RtpEngine{Kind: MediaKindAudio}, nil))
}
