// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// sha256Fingerprint reimplements media/dtls.go's dtlsSHA256Fingerprint at
// the mediacore layer (that helper is unexported inside the media
// package), producing the colon-separated hex form SDP's
// a=fingerprint:sha-256 attribute uses.
func sha256Fingerprint(cert tls.Certificate) (string, error) {
	if len(cert.Certificate) == 0 {
		return "", fmt.Errorf("no certificate data found")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return "", fmt.Errorf("parsing certificate: %w", err)
	}
	sum := sha256.Sum256(leaf.Raw)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = strings.ToUpper(fmt.Sprintf("%02x", b))
	}
	return strings.Join(parts, ":"), nil
}

// EnsureLocalCertificate records the DTLS certificate the environment's
// CertProvider supplied for this engine's answer, computing the
// sha-256 fingerprint the SDP Generator advertises in a=fingerprint and
// storing the certificate chain for the handshake DTLSHandshake performs
// once the transport is activated.
func EnsureLocalCertificate(e *RtpEngine, certs []tls.Certificate) error {
	if len(certs) == 0 {
		return newNegotiationError("security", e.Kind.String(), fmt.Errorf("no local dtls certificate supplied"))
	}
	fp, err := sha256Fingerprint(certs[0])
	if err != nil {
		return newNegotiationError("security", e.Kind.String(), fmt.Errorf("computing local dtls fingerprint: %w", err))
	}
	e.LocalFingerprint = fp
	e.FingerprintAlg = "sha-256"
	e.Secure.DTLSCertificates = certs
	return nil
}

// parseCryptoLine parses one SDP "a=crypto:<tag> <suite> inline:<key>[|lifetime|mki]"
// attribute value, per §4.2.
func parseCryptoLine(attr string) (tag int, suite SRTPSuite, keyB64 string, ok bool) {
	rest, found := strings.CutPrefix(attr, "crypto:")
	if !found {
		return 0, SRTPSuiteNone, "", false
	}
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return 0, SRTPSuiteNone, "", false
	}
	t, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, SRTPSuiteNone, "", false
	}
	suite = srtpSuiteFromSDPName(fields[1])
	if suite == SRTPSuiteNone {
		return 0, SRTPSuiteNone, "", false
	}
	keyParam, found := strings.CutPrefix(fields[2], "inline:")
	if !found {
		return 0, SRTPSuiteNone, "", false
	}
	key, _, _ := strings.Cut(keyParam, "|")
	return t, suite, key, true
}

// secureProfileAllowed implements the SAVP/SAVPF media-profile enforcement
// with the documented exceptions: a plain "RTP/AVP" line is rejected
// unless it's a WebRTC handle (which is always SAVPF under the hood) or
// the engine explicitly allows the AVP quirk (interop with UAs that send
// a=crypto on an AVP line).
func secureProfileAllowed(mediaProfile string, webrtc bool, allowAVPQuirk bool) bool {
	switch mediaProfile {
	case "RTP/SAVP", "RTP/SAVPF":
		return true
	case "RTP/AVP", "RTP/AVPF":
		return webrtc || allowAVPQuirk
	default:
		return false
	}
}

// NegotiateSecurity runs the Security Negotiator (§4.2) for one engine
// against a set of offered crypto lines and/or DTLS fingerprints,
// populating e.Secure. DTLS fingerprints take priority over SDES crypto
// when both are present, matching the spec's "DTLS-SRTP preferred when
// offered" rule.
func NegotiateSecurity(e *RtpEngine, cryptoLines []string, fingerprints map[string]string, webrtc, allowAVPQuirk bool, mediaProfile string) error {
	if !secureProfileAllowed(mediaProfile, webrtc, allowAVPQuirk) && (len(cryptoLines) > 0 || len(fingerprints) > 0) {
		return newNegotiationError("security", e.Kind.String(), fmt.Errorf("media profile %q does not permit secure media", mediaProfile))
	}

	if len(fingerprints) > 0 {
		fp, ok := fingerprints["sha-256"]
		if !ok {
			return newNegotiationError("security", e.Kind.String(), fmt.Errorf("only sha-256 DTLS fingerprints are supported"))
		}
		e.Secure.DTLSEnabled = true
		if e.Secure.DTLSFingerprints == nil {
			e.Secure.DTLSFingerprints = make(map[string]string)
		}
		e.Secure.DTLSFingerprints["sha-256"] = fp
		e.RemoteFingerprint = fp
		e.FingerprintAlg = "sha-256"
		return nil
	}

	for _, line := range cryptoLines {
		_, suite, keyB64, ok := parseCryptoLine(line)
		if !ok {
			continue
		}
		var key [30]byte
		if !decodeSDESKey(keyB64, &key) {
			continue
		}
		if e.Secure.acceptRemoteKey(suite, keyB64, key) {
			return nil
		}
	}

	if len(cryptoLines) > 0 {
		return newNegotiationError("security", e.Kind.String(), fmt.Errorf("no acceptable a=crypto line found"))
	}
	return nil
}

func decodeSDESKey(b64 string, out *[30]byte) bool {
	padded := b64
	if m := len(padded) % 4; m != 0 {
		padded += strings.Repeat("=", 4-m)
	}
	decoded, err := base64.StdEncoding.DecodeString(padded)
	if err != nil || len(decoded) != 30 {
		return false
	}
	copy(out[:], decoded)
	return true
}
