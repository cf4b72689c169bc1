// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import "net"

// HoldState is the three-state hold machine from §4.7. No teacher
// equivalent exists (diago has no hold concept); grounded on spec text and
// original_source's MOH/hold handling.
type HoldState int

const (
	HoldActive HoldState = iota
	HoldProtoHold
	HoldHeldWithMOH
)

func (s HoldState) String() string {
	switch s {
	case HoldActive:
		return "active"
	case HoldProtoHold:
		return "proto-hold"
	case HoldHeldWithMOH:
		return "held-with-moh"
	default:
		return "unknown"
	}
}

// zeroAddrHold reports whether a remote connection address signals hold
// via the zero-address convention (0.0.0.0 / ::) rather than a=sendonly,
// the nuance §4.11 supplements: a zero address is hold even without an
// explicit direction attribute, but only if the address is the *session*
// or media-level "c=" line, not merely absent.
func zeroAddrHold(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsUnspecified()
}

// classifyHold classifies an SDP direction attribute (sendrecv,
// sendonly, recvonly, inactive) against the zero-address signal to decide
// the new HoldState for one engine.
func classifyHold(direction string, remoteIP net.IP) HoldState {
	if zeroAddrHold(remoteIP) {
		return HoldProtoHold
	}
	switch direction {
	case "sendonly", "inactive":
		return HoldProtoHold
	default:
		return HoldActive
	}
}

// capMissedThreshold implements §4.7's "cap missed-packet threshold to
// hold value": a hold transition must not leave inactivity detection
// disabled, so if no hold-specific threshold was configured it falls back
// to the normal one rather than defaulting to "never times out".
func (e *RtpEngine) capMissedThreshold() {
	if e.MaxMissedHold == 0 {
		e.MaxMissedHold = e.MaxMissedNormal
	}
}

// transitionHold applies a new observed direction/address to a handle.
// classifyHold only ever produces Active or ProtoHold; the upgrade to
// HoldHeldWithMOH is EngageMOH's job, called by the caller (Transport
// Provisioner / signaling layer) once it knows whether a MOH source
// should be attached (§4.7's "unless configured as silence or
// indicate_hold"). FlagDisableHold suppresses any transition away from
// Active entirely.
func (h *MediaHandle) transitionHold(newState HoldState) (changed bool) {
	h.mu.Lock()
	old := h.holdState
	if old == newState {
		h.mu.Unlock()
		return false
	}
	if h.flags&FlagDisableHold != 0 && newState != HoldActive {
		h.mu.Unlock()
		return false
	}
	h.holdState = newState
	h.mu.Unlock()

	h.applyHoldSideEffects(old, newState)
	return true
}

// EngageMOH upgrades a ProtoHold leg into HoldHeldWithMOH, broadcasting
// MOH to the partner leg (Scenario 6) unless FlagSuppressMOH is set
// (moh_sound "silence"/"indicate_hold"). Reports whether the upgrade
// happened.
func (h *MediaHandle) EngageMOH() bool {
	if h.HasFlag(FlagSuppressMOH) {
		return false
	}
	h.mu.Lock()
	if h.holdState != HoldProtoHold {
		h.mu.Unlock()
		return false
	}
	h.holdState = HoldHeldWithMOH
	h.mu.Unlock()

	h.applyHoldSideEffects(HoldProtoHold, HoldHeldWithMOH)
	return true
}

// applyHoldSideEffects runs outside h.mu (collaborator calls may block/
// re-enter) and implements §4.7's transition effects: missed-packet-
// threshold capping, MOH broadcast to the partner leg, presence marking,
// and the EventHoldStateChanged notification.
func (h *MediaHandle) applyHoldSideEffects(old, newState HoldState) {
	env := h.environment()
	partner := h.PartnerLeg()

	switch newState {
	case HoldProtoHold, HoldHeldWithMOH:
		h.Audio.capMissedThreshold()
		if h.HasVideo {
			h.Video.capMissedThreshold()
		}
		if newState == HoldHeldWithMOH && partner != nil {
			if err := env.StartMOH(partner); err != nil {
				h.log.Warn().Err(err).Msg("failed to start music on hold for partner leg")
			}
		}
		env.SetPresence(h, "hold")
	case HoldActive:
		if old == HoldHeldWithMOH && partner != nil {
			if err := env.StopMOH(partner); err != nil {
				h.log.Warn().Err(err).Msg("failed to stop music on hold for partner leg")
			}
		}
		env.SetPresence(h, "unhold")
	}

	env.Emit(Event{Kind: EventHoldStateChanged, Handle: h, Detail: newState.String()})
}

func (h *MediaHandle) HoldState() HoldState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.holdState
}
