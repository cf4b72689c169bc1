// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidateLineHost(t *testing.T) {
	c, err := parseCandidateLine("candidate:1 1 udp 2130706431 192.168.1.5 40000 typ host")
	require.NoError(t, err)
	assert.Equal(t, "1", c.Foundation)
	assert.Equal(t, IceComponentRTP, c.Component)
	assert.Equal(t, net.ParseIP("192.168.1.5").String(), c.IP.String())
	assert.Equal(t, 40000, c.Port)
	assert.Equal(t, IceCandidateHost, c.Type)
}

func TestParseCandidateLineTooFewFields(t *testing.T) {
	_, err := parseCandidateLine("candidate:1 1")
	assert.Error(t, err)
}

func TestParseCandidateLineRejectsNonUDP(t *testing.T) {
	_, err := parseCandidateLine("candidate:1 1 tcp 2130706431 192.168.1.5 40000 typ host")
	assert.Error(t, err)
}

func TestParseRemoteCandidatesCapsPerComponent(t *testing.T) {
	var attrs []string
	for i := 0; i < MaxCandidatesPerComponent+5; i++ {
		attrs = append(attrs, "candidate:1 1 udp 100 10.0.0.1 5000 typ host")
	}
	st := ParseRemoteCandidates(attrs)
	assert.Len(t, st.Candidates[IceComponentRTP], MaxCandidatesPerComponent)
}

// TestChooseCandidatePrefersACLMatchedLocalHost matches spec.md Scenario
// 3: a host candidate on the local network that an ACL rule like
// "localnet.auto" permits is chosen as component-1 over a non-local
// srflx candidate, not excluded for sitting on the local network.
func TestChooseCandidatePrefersACLMatchedLocalHost(t *testing.T) {
	_, localnetAuto, _ := net.ParseCIDR("192.168.0.0/16")
	acl := []AclRule{{Network: localnetAuto, Allow: true}}
	cands := []IceCandidate{
		{Type: IceCandidateHost, IP: net.ParseIP("192.168.1.5")},
		{Type: IceCandidateSrflx, IP: net.ParseIP("203.0.113.7"), RelatedIP: net.ParseIP("192.168.1.5"), RelatedPort: 5000},
	}
	idx, ok := ChooseCandidate(cands, acl)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestChooseCandidateHostDeniedByACLFallsBackToSrflx(t *testing.T) {
	_, deny, _ := net.ParseCIDR("10.0.0.0/8")
	acl := []AclRule{{Network: deny, Allow: false}}
	cands := []IceCandidate{
		{Type: IceCandidateHost, IP: net.ParseIP("10.0.0.5")},
		{Type: IceCandidateSrflx, IP: net.ParseIP("203.0.113.5")},
	}
	idx, ok := ChooseCandidate(cands, acl)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestAclBreakAfterFirstMatch(t *testing.T) {
	_, deny, _ := net.ParseCIDR("203.0.113.0/24")
	_, allowAll, _ := net.ParseCIDR("0.0.0.0/0")
	acl := []AclRule{
		{Network: deny, Allow: false},
		{Network: allowAll, Allow: true},
	}
	assert.False(t, aclAllows(acl, net.ParseIP("203.0.113.9")))
	assert.True(t, aclAllows(acl, net.ParseIP("8.8.8.8")))
}

func TestCandidatePriorityOrdering(t *testing.T) {
	host := candidatePriority(IceCandidateHost, IceComponentRTP)
	srflx := candidatePriority(IceCandidateSrflx, IceComponentRTP)
	relay := candidatePriority(IceCandidateRelay, IceComponentRTP)
	assert.True(t, host > srflx)
	assert.True(t, srflx > relay)
}

func TestGenerateLocalCredentialsLengths(t *testing.T) {
	var st IceState
	require.NoError(t, st.GenerateLocalCredentials())
	assert.Len(t, st.LocalUfrag, 8)
	assert.Len(t, st.LocalPwd, 32)
}

func TestIceStateUsableRequiresUfragAndPwd(t *testing.T) {
	st := newIceState()
	st.Candidates[IceComponentRTP] = []IceCandidate{{IP: net.ParseIP("127.0.0.1")}}
	st.Chosen[IceComponentRTP] = 0
	assert.False(t, st.Usable(IceComponentRTP))

	st.RemoteUfrag, st.RemotePwd = "u", "p"
	assert.True(t, st.Usable(IceComponentRTP))
}
