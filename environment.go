// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"crypto/tls"
	"net"
)

// EventKind enumerates the events MediaEnvironment.EventSink receives.
type EventKind int

const (
	EventPtimeAutoFixClamped EventKind = iota
	EventMediaTimeout
	EventHoldStateChanged
	EventDTLSHandshakeFailed
)

// Event is a single notification handed to the collaborator's event sink.
type Event struct {
	Kind   EventKind
	Handle *MediaHandle
	Kind2  MediaKind
	Detail string
}

// CertProvider generates or supplies DTLS certificates for a handle's
// Security Negotiator. Separate from SecureSettings because cert material
// is environment policy (one cert per call vs. one shared process cert),
// not per-stream negotiation state.
type CertProvider interface {
	Certificate() ([]tls.Certificate, error)
}

// PortAllocator hands out local RTP ports (RTCP is port+1 unless
// rtcp-mux). Implementations typically track a pool/range and avoid
// handing out a port still draining from a prior call.
type PortAllocator interface {
	AllocatePort(ip net.IP) (int, error)
	ReleasePort(ip net.IP, port int)
}

// NATHelper resolves the externally-visible address a locally bound
// socket should be advertised as, e.g. via a configured public IP range
// or a learned mapping.
type NATHelper interface {
	ExternalAddr(local net.IP, port int) (net.IP, int, error)
}

// StunResolver performs a STUN binding request to discover a
// server-reflexive address, used by ProvisionTransport to set the
// session's ExternalIP when the NATHelper reports none (§4.3/§4.10 —
// pion/stun is wired here, not pion/ice's Agent).
type StunResolver interface {
	ResolveExternal(local net.IP, port int) (net.IP, int, error)
}

// CodecRegistry resolves a codec name to its static parameters (clock
// rate, default channels, default ptime), backing the Codec Selector's
// name+clockrate matching path (§4.4).
type CodecRegistry interface {
	Lookup(name string) (CodecParams, bool)
	StaticPayloadType(name string) (uint8, bool)
}

// EventSink receives notifications for conditions the spec says should be
// observable but not necessarily fatal (ptime auto-fix clamp, media
// timeout, hold-state transitions). See Open Question 3 in DESIGN.md.
type EventSink interface {
	Emit(Event)
}

// MOHProvider starts/stops music-on-hold playback and publishes presence
// (§4.7): entering ProtoHold/HeldWithMOH broadcasts MOH to the partner
// leg and marks this handle's presence as "hold"; returning to Active
// stops the partner's MOH and marks presence "unhold" (Scenario 6).
type MOHProvider interface {
	StartMOH(h *MediaHandle) error
	StopMOH(h *MediaHandle) error
	SetPresence(h *MediaHandle, state string)
}

// MediaEnvironment bundles every collaborator a MediaHandle needs but does
// not implement itself — the spec's §9 design note that negotiation logic
// stays pure and testable while I/O-shaped concerns are injected. Grounded
// in diago's DiagoOption-configured collaborator fields, generalized into
// one interface so WithEnvironment can wire a single value.
type MediaEnvironment interface {
	CertProvider
	PortAllocator
	NATHelper
	StunResolver
	CodecRegistry
	EventSink
	MOHProvider

	Config() ConfigView
}

// noopEnvironment is used when a MediaHandle is built without
// WithEnvironment, so negotiation-only unit tests don't need a full
// collaborator bundle.
type noopEnvironment struct {
	cfg ConfigView
}

func (noopEnvironment) Certificate() ([]tls.Certificate, error)             { return nil, nil }
func (noopEnvironment) AllocatePort(ip net.IP) (int, error)                 { return 0, nil }
func (noopEnvironment) ReleasePort(ip net.IP, port int)                     {}
func (noopEnvironment) ExternalAddr(ip net.IP, port int) (net.IP, int, error) { return ip, port, nil }
func (noopEnvironment) ResolveExternal(ip net.IP, port int) (net.IP, int, error) {
	return ip, port, nil
}
func (noopEnvironment) Lookup(name string) (CodecParams, bool)       { return CodecParams{}, false }
func (noopEnvironment) StaticPayloadType(name string) (uint8, bool)  { return 0, false }
func (noopEnvironment) Emit(Event)                                  {}
func (noopEnvironment) StartMOH(*MediaHandle) error                  { return nil }
func (noopEnvironment) StopMOH(*MediaHandle) error                   { return nil }
func (noopEnvironment) SetPresence(*MediaHandle, string)             {}
func (e noopEnvironment) Config() ConfigView                         { return e.cfg }

func (h *MediaHandle) environment() MediaEnvironment {
	if h.env == nil {
		return noopEnvironment{}
	}
	return h.env
}
