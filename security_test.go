// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCryptoLine(t *testing.T) {
	tag, suite, key, ok := parseCryptoLine("crypto:1 AES_CM_128_HMAC_SHA1_80 inline:WVNlNXRoOTdROWpEY1Zpd0N6Nk9Vbjl4dlBCNUhOZnNkZjQ3Rg==")
	require.True(t, ok)
	assert.Equal(t, 1, tag)
	assert.Equal(t, SRTPSuiteAES_CM_128_HMAC_SHA1_80, suite)
	assert.NotEmpty(t, key)
}

func TestParseCryptoLineRejectsMalformed(t *testing.T) {
	_, _, _, ok := parseCryptoLine("crypto:1 AES_CM_128_HMAC_SHA1_80")
	assert.False(t, ok)
}

func TestSecureProfileAllowed(t *testing.T) {
	assert.True(t, secureProfileAllowed("RTP/SAVP", false, false))
	assert.True(t, secureProfileAllowed("RTP/SAVPF", false, false))
	assert.False(t, secureProfileAllowed("RTP/AVP", false, false))
	assert.True(t, secureProfileAllowed("RTP/AVP", true, false))
	assert.True(t, secureProfileAllowed("RTP/AVP", false, true))
}

func TestGenerateLocalKeyAndAcceptRemoteKey(t *testing.T) {
	var s SecureSettings
	require.NoError(t, s.GenerateLocalKey(SRTPSuiteAES_CM_128_HMAC_SHA1_80))
	assert.True(t, s.Active())
	assert.NotContains(t, s.LocalKeyB64, "=")

	var key [30]byte
	copy(key[:], []byte("012345678901234567890123456789"))
	assert.True(t, s.acceptRemoteKey(SRTPSuiteAES_CM_128_HMAC_SHA1_80, base64.StdEncoding.EncodeToString(key[:]), key))

	// Different suite family (first 23 chars differ) is rejected once a
	// local key already exists.
	assert.False(t, s.acceptRemoteKey(SRTPSuiteAES_CM_128_NULL_AUTH, base64.StdEncoding.EncodeToString(key[:]), key))
}

func TestAcceptRemoteKeyGeneratesLocalKeyOnFirstNegotiation(t *testing.T) {
	var s SecureSettings
	var key [30]byte
	copy(key[:], []byte("012345678901234567890123456789"))
	require.True(t, s.acceptRemoteKey(SRTPSuiteAES_CM_128_HMAC_SHA1_80, base64.StdEncoding.EncodeToString(key[:]), key))
	assert.NotEmpty(t, s.LocalKeyB64)
	assert.Equal(t, SRTPSuiteAES_CM_128_HMAC_SHA1_80, s.SendSuite)
}

func TestNegotiateSecurityPopulatesLocalKeyOnFirstOffer(t *testing.T) {
	e := &RtpEngine{Kind: MediaKindAudio}
	var key [30]byte
	copy(key[:], []byte("abcdefghijklmnopqrstuvwxyzABCD"))
	line := "crypto:1 AES_CM_128_HMAC_SHA1_80 inline:" + base64.StdEncoding.EncodeToString(key[:])
	require.NoError(t, NegotiateSecurity(e, []string{line}, nil, false, false, "RTP/SAVP"))
	assert.NotEmpty(t, e.Secure.LocalKeyB64)
	assert.Equal(t, SRTPSuiteAES_CM_128_HMAC_SHA1_80, e.Secure.SendSuite)
}

func TestNegotiateSecurityRejectsPlainAVP(t *testing.T) {
	e := &RtpEngine{Kind: MediaKindAudio}
	err := NegotiateSecurity(e, []string{"crypto:1 AES_CM_128_HMAC_SHA1_80 inline:" + base64.StdEncoding.EncodeToString(make([]byte, 30))}, nil, false, false, "RTP/AVP")
	assert.Error(t, err)
}

func TestNegotiateSecurityDTLSRequiresSHA256(t *testing.T) {
	e := &RtpEngine{Kind: MediaKindAudio}
	err := NegotiateSecurity(e, nil, map[string]string{"sha-1": "AA:BB"}, true, false, "RTP/SAVPF")
	assert.Error(t, err)
}

func TestNegotiateSecurityDTLSSuccess(t *testing.T) {
	e := &RtpEngine{Kind: MediaKindAudio}
	err := NegotiateSecurity(e, nil, map[string]string{"sha-256": "AA:BB:CC"}, true, false, "RTP/SAVPF")
	require.NoError(t, err)
	assert.True(t, e.Secure.DTLSEnabled)
	assert.Equal(t, "AA:BB:CC", e.Secure.DTLSFingerprints["sha-256"])
}
