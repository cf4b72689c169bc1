// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// parseCandidateLine parses one SDP "a=candidate:..." attribute value per
// RFC 5245 §15.1. A line with fewer than 5 space-separated fields is
// rejected per §8's boundary behavior; the port and "typ <type>" fields
// are read when present.
func parseCandidateLine(attr string) (IceCandidate, error) {
	rest, ok := strings.CutPrefix(attr, "candidate:")
	if !ok {
		rest = attr
	}
	fields := strings.Fields(rest)
	if len(fields) < 5 {
		return IceCandidate{}, fmt.Errorf("candidate line has too few fields")
	}

	comp, err := strconv.Atoi(fields[1])
	if err != nil {
		return IceCandidate{}, fmt.Errorf("bad component: %w", err)
	}
	if !strings.EqualFold(fields[2], "udp") {
		return IceCandidate{}, fmt.Errorf("non-UDP candidate transport %q not supported", fields[2])
	}
	prio, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return IceCandidate{}, fmt.Errorf("bad priority: %w", err)
	}
	ip := net.ParseIP(fields[4])
	if ip == nil {
		return IceCandidate{}, fmt.Errorf("bad candidate address %q", fields[4])
	}

	c := IceCandidate{
		Foundation: fields[0],
		Component:  IceComponent(comp),
		Transport:  "udp",
		Priority:   uint32(prio),
		IP:         ip,
	}

	if len(fields) >= 7 && fields[6] == "typ" && len(fields) >= 8 {
		c.Port, _ = strconv.Atoi(fields[5])
		switch fields[7] {
		case "host":
			c.Type = IceCandidateHost
		case "srflx":
			c.Type = IceCandidateSrflx
		case "relay":
			c.Type = IceCandidateRelay
		}
	} else if len(fields) >= 6 {
		c.Port, _ = strconv.Atoi(fields[5])
	}

	for i := 8; i+1 < len(fields); i += 2 {
		switch fields[i] {
		case "raddr":
			c.RelatedIP = net.ParseIP(fields[i+1])
		case "rport":
			c.RelatedPort, _ = strconv.Atoi(fields[i+1])
		case "generation":
			c.Generation, _ = strconv.Atoi(fields[i+1])
		}
	}

	return c, nil
}

// ParseRemoteCandidates parses every a=candidate line for one media
// section into an IceState's Candidates table, enforcing the
// MaxCandidatesPerComponent cap per component.
func ParseRemoteCandidates(attrs []string) IceState {
	st := newIceState()
	for _, a := range attrs {
		if !strings.HasPrefix(a, "candidate:") {
			continue
		}
		c, err := parseCandidateLine(a)
		if err != nil {
			continue
		}
		if len(st.Candidates[c.Component]) >= MaxCandidatesPerComponent {
			continue
		}
		st.Candidates[c.Component] = append(st.Candidates[c.Component], c)
	}
	return st
}

// aclAllows reports whether a candidate's address passes the configured
// ACL, break-after-first-match semantics preserved from the original's
// ACL engine (§9): the first matching rule decides, regardless of rules
// that follow it. A nil acl allows everything.
func aclAllows(acl []AclRule, ip net.IP) bool {
	for _, r := range acl {
		if r.Network.Contains(ip) {
			return r.Allow
		}
	}
	return true
}

// AclRule is one entry of an address-based accept/deny list.
type AclRule struct {
	Network *net.IPNet
	Allow   bool
}

// ChooseCandidate implements §4.3's ordered-fallback selection: a host
// candidate that passes acl wins as component-1, then any candidate
// carrying rport/srflx info, then the first ACL-permitted candidate of
// any type. acl is consulted per candidate with break-after-first-match
// semantics (aclAllows); whether a local-network address is acceptable is
// entirely the ACL's call (e.g. a "localnet.auto" rule permitting
// RFC 1918 ranges), not something ChooseCandidate special-cases — per
// Scenario 3, a host candidate on the local network that a configured ACL
// matches is preferred over a non-local srflx candidate, not excluded.
func ChooseCandidate(cands []IceCandidate, acl []AclRule) (int, bool) {
	for i, c := range cands {
		if c.Type == IceCandidateHost && aclAllows(acl, c.IP) {
			return i, true
		}
	}
	for i, c := range cands {
		if (c.Type == IceCandidateSrflx || c.RelatedPort != 0) && aclAllows(acl, c.IP) {
			return i, true
		}
	}
	for i, c := range cands {
		if aclAllows(acl, c.IP) {
			return i, true
		}
	}
	return -1, false
}

// GenerateLocalCredentials fills LocalUfrag/LocalPwd with random
// ICE-compliant values (RFC 5245 §15.4: ufrag >= 4 chars, pwd >= 22
// chars of ice-char). Hex encoding keeps the character set within
// ice-char without needing a custom alphabet.
func (s *IceState) GenerateLocalCredentials() error {
	ufrag, err := randomHex(4)
	if err != nil {
		return err
	}
	pwd, err := randomHex(16)
	if err != nil {
		return err
	}
	s.LocalUfrag = ufrag
	s.LocalPwd = pwd
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating ICE credential: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateLocalCandidate builds one host candidate advertising ip:port for
// the given component, with a random foundation and the RFC 5245 priority
// formula (§4.3/§4.8).
func GenerateLocalCandidate(component IceComponent, ip net.IP, port int) (IceCandidate, error) {
	foundation, err := randomHex(4)
	if err != nil {
		return IceCandidate{}, err
	}
	return IceCandidate{
		Foundation: foundation,
		Component:  component,
		Transport:  "udp",
		Priority:   candidatePriority(IceCandidateHost, component),
		IP:         ip,
		Port:       port,
		Type:       IceCandidateHost,
	}, nil
}
