// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pion/srtp/v3"
)

// SRTPSuite enumerates the crypto suites the Security Negotiator accepts.
// Anything else fails the media line per §4.2.
type SRTPSuite int

const (
	SRTPSuiteNone SRTPSuite = iota
	SRTPSuiteAES_CM_128_HMAC_SHA1_32
	SRTPSuiteAES_CM_128_HMAC_SHA1_80
	SRTPSuiteAES_CM_128_NULL_AUTH
)

func (s SRTPSuite) String() string {
	switch s {
	case SRTPSuiteAES_CM_128_HMAC_SHA1_32:
		return "AES_CM_128_HMAC_SHA1_32"
	case SRTPSuiteAES_CM_128_HMAC_SHA1_80:
		return "AES_CM_128_HMAC_SHA1_80"
	case SRTPSuiteAES_CM_128_NULL_AUTH:
		return "AES_CM_128_NULL_AUTH"
	default:
		return ""
	}
}

// protectionProfile maps our suite enum onto pion/srtp's ProtectionProfile,
// which owns the actual key/salt-length accounting and AEAD/cipher wiring.
func (s SRTPSuite) protectionProfile() srtp.ProtectionProfile {
	switch s {
	case SRTPSuiteAES_CM_128_HMAC_SHA1_32:
		return srtp.ProtectionProfileAes128CmHmacSha1_32
	case SRTPSuiteAES_CM_128_HMAC_SHA1_80:
		return srtp.ProtectionProfileAes128CmHmacSha1_80
	case SRTPSuiteAES_CM_128_NULL_AUTH:
		return srtp.ProtectionProfileNullHmacSha1_80
	default:
		return 0
	}
}

func srtpSuiteFromSDPName(name string) SRTPSuite {
	switch name {
	case "AES_CM_128_HMAC_SHA1_32":
		return SRTPSuiteAES_CM_128_HMAC_SHA1_32
	case "AES_CM_128_HMAC_SHA1_80":
		return SRTPSuiteAES_CM_128_HMAC_SHA1_80
	case "NULL_HMAC_SHA1_80", "AES_CM_128_NULL_AUTH":
		return SRTPSuiteAES_CM_128_NULL_AUTH
	default:
		return SRTPSuiteNone
	}
}

// SecureSettings holds SRTP state for one RtpEngine. See SPEC_FULL.md §3.
type SecureSettings struct {
	CryptoTag int

	SendKey [30]byte
	RecvKey [30]byte

	SendSuite SRTPSuite
	RecvSuite SRTPSuite

	// LocalKeyB64/RemoteKeyB64 are the base64-encoded forms (padding stripped)
	// exchanged on the wire via a=crypto inline: keys.
	LocalKeyB64  string
	RemoteKeyB64 string

	DTLSEnabled      bool
	DTLSFingerprints map[string]string // alg (lowercase, e.g. "sha-256") -> hex digest
	// DTLSSetupRole is the remote's offered "a=setup:" value
	// (active/passive/actpass); it decides which side runs dtls.Client
	// vs dtls.Server, mirroring media/media_session.go's RemoteSDP
	// handling: remote "active" means we listen (server), remote
	// "passive"/"actpass" means we connect out (client).
	DTLSSetupRole string
	// DTLSCertificates is the local certificate chain EnsureLocalCertificate
	// recorded from the environment's CertProvider; DTLSHandshake presents
	// it during the handshake.
	DTLSCertificates []tls.Certificate

	ZRTPHash string
}

// DTLSIsClient reports whether this side should run the DTLS client role,
// per the setup:active/passive/actpass mapping above. Defaults to client
// when no explicit role was offered (actpass's usual resolution).
func (s *SecureSettings) DTLSIsClient() bool {
	return s.DTLSSetupRole != "active"
}

// Active reports whether SRTP keying material has been established either
// via SDES (LocalKeyB64 set) or DTLS-SRTP (DTLSEnabled).
func (s *SecureSettings) Active() bool {
	return s.LocalKeyB64 != "" || s.DTLSEnabled
}

// GenerateLocalKey creates 30 random bytes of SDES key material and records
// both the raw and base64 (unpadded) forms, per §4.2 "generate 30 random
// bytes, base64-encode stripping = padding".
func (s *SecureSettings) GenerateLocalKey(suite SRTPSuite) error {
	if _, err := rand.Read(s.SendKey[:]); err != nil {
		return fmt.Errorf("generating SDES key: %w", err)
	}
	s.SendSuite = suite
	s.LocalKeyB64 = strings.TrimRight(base64.StdEncoding.EncodeToString(s.SendKey[:]), "=")
	return nil
}

// acceptRemoteKey implements §4.2's remote-key update rule. The first time
// an engine negotiates security it has no local key yet; acceptRemoteKey
// generates one (same suite as the accepted remote line) so the crypto
// line the engine later emits carries real material instead of an empty
// suite/key (Testable Property #2). On a re-offer, once a local key
// exists, a new remote key is only accepted if its suite prefix (first 23
// characters of the "AES…" name) matches the existing suite — same-suite
// re-offers update the remote key only and keep the local key untouched
// (Scenario 2).
func (s *SecureSettings) acceptRemoteKey(suite SRTPSuite, keyB64 string, key [30]byte) bool {
	if s.LocalKeyB64 == "" {
		if err := s.GenerateLocalKey(suite); err != nil {
			return false
		}
		s.RemoteKeyB64 = keyB64
		s.RecvKey = key
		s.RecvSuite = suite
		return true
	}
	existing, incoming := s.SendSuite.String(), suite.String()
	if len(existing) < 23 || len(incoming) < 23 || existing[:23] != incoming[:23] {
		return false
	}
	s.RemoteKeyB64 = keyB64
	s.RecvKey = key
	s.RecvSuite = suite
	return true
}
