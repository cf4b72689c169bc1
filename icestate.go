// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"net"

	"github.com/pion/ice/v4"
)

// IceComponent distinguishes the RTP and RTCP components of a media stream.
type IceComponent int

const (
	IceComponentRTP  IceComponent = 1
	IceComponentRTCP IceComponent = 2
)

// IceCandidateType mirrors pion/ice's CandidateType for host/srflx/relay
// candidates without pulling in the full connectivity-check Agent (§4.10 —
// the agent is deliberately unbound, only the type enum is reused directly).
type IceCandidateType ice.CandidateType

const (
	IceCandidateHost  = IceCandidateType(ice.CandidateTypeHost)
	IceCandidateSrflx = IceCandidateType(ice.CandidateTypeServerReflexive)
	IceCandidateRelay = IceCandidateType(ice.CandidateTypeRelay)
)

func (t IceCandidateType) String() string {
	return ice.CandidateType(t).String()
}

// IceCandidate is a single parsed candidate line.
// <foundation> <component> <transport> <priority> <addr> <port> typ <type> [raddr <ip>] [rport <port>] [generation <n>]
type IceCandidate struct {
	Foundation string
	Component  IceComponent
	Transport  string
	Priority   uint32
	IP         net.IP
	Port       int
	Type       IceCandidateType
	RelatedIP  net.IP
	RelatedPort int
	Generation int
}

// MaxCandidatesPerComponent bounds the candidate table per §3.
const MaxCandidatesPerComponent = 16

// IceState holds the parsed remote candidates, the chosen pair per
// component, and the generated local credentials/candidate, separately
// per direction (offer we received vs. answer we received). See §3/§4.3.
type IceState struct {
	Candidates map[IceComponent][]IceCandidate
	Chosen     map[IceComponent]int // index into Candidates[component], -1 if none

	RemoteUfrag string
	RemotePwd   string
	RemoteOptions string

	LocalUfrag string
	LocalPwd   string

	// ReadyCount is a per-component counter that newIceState allocates;
	// nothing in this package increments it.
	ReadyCount map[IceComponent]int

	RTCPMux bool
	// RTCPMuxKnown distinguishes "media parsed, no a=rtcp-mux seen" (false,
	// known) from "media section not parsed at all" (zero value, unknown).
	RTCPMuxKnown bool

	Controlling bool
}

func newIceState() IceState {
	return IceState{
		Candidates: make(map[IceComponent][]IceCandidate),
		Chosen:     map[IceComponent]int{IceComponentRTP: -1, IceComponentRTCP: -1},
		ReadyCount: make(map[IceComponent]int),
	}
}

// ChosenCandidate returns the candidate selected for a component, if any.
func (s *IceState) ChosenCandidate(c IceComponent) (IceCandidate, bool) {
	idx, ok := s.Chosen[c]
	if !ok || idx < 0 {
		return IceCandidate{}, false
	}
	cands := s.Candidates[c]
	if idx >= len(cands) {
		return IceCandidate{}, false
	}
	return cands[idx], true
}

// Usable reports whether a component's chosen candidate is ready: both
// ufrag and pwd are known. See §3's IceState invariant.
func (s *IceState) Usable(c IceComponent) bool {
	_, ok := s.ChosenCandidate(c)
	return ok && s.RemoteUfrag != "" && s.RemotePwd != ""
}

// candidatePriority implements the RFC 5245 preferred-type priority
// formula the spec names in §4.3/§4.8:
// (2^24)*type_pref + (2^8)*local_pref + (256 - component)
func candidatePriority(t IceCandidateType, component IceComponent) uint32 {
	var typePref uint32
	switch t {
	case IceCandidateHost:
		typePref = 126
	case IceCandidateSrflx:
		typePref = 100
	case IceCandidateRelay:
		typePref = 0
	}
	const localPref = 65535
	return (1<<24)*typePref + (1<<8)*localPref + (256 - uint32(component))
}
