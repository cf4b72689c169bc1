// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

// Package sdpcodec adapts pion/sdp/v3's full SessionDescription into the
// flat, per-media parsed-tree shape §6 describes as the external
// SDP-parser contract. ProcessRemoteSDP parses every offer, first or
// re-offer, with media/sdp (the teacher's own minimal parser); this
// package is a separate, fully-validating parse (including WebRTC
// extmap/rid/simulcast attributes the minimal parser does not model)
// that nothing else in this module calls.
package sdpcodec

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// ParsedMedia is one media section reduced to the fields the negotiation
// core actually consumes.
type ParsedMedia struct {
	MediaType string
	Port      int
	Proto     string
	Formats   []string

	ConnectionIP string

	Attributes []string
}

// ParsedSession is the full external-parser result: session-level
// attributes plus every media section in document order.
type ParsedSession struct {
	OriginSessionID      uint64
	OriginSessionVersion uint64
	SessionConnectionIP  string
	SessionAttributes    []string
	Media                []ParsedMedia
}

// Parse unmarshals raw into a pion/sdp/v3 SessionDescription and reduces
// it to ParsedSession.
func Parse(raw []byte) (*ParsedSession, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("parsing SDP: %w", err)
	}

	out := &ParsedSession{
		OriginSessionID:      sd.Origin.SessionID,
		OriginSessionVersion: sd.Origin.SessionVersion,
	}
	if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		out.SessionConnectionIP = sd.ConnectionInformation.Address.Address
	}
	for _, a := range sd.Attributes {
		out.SessionAttributes = append(out.SessionAttributes, attrString(a))
	}

	for _, md := range sd.MediaDescriptions {
		pm := ParsedMedia{
			MediaType: md.MediaName.Media,
			Port:      md.MediaName.Port.Value,
			Proto:     joinProtos(md.MediaName.Protos),
			Formats:   md.MediaName.Formats,
		}
		if md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
			pm.ConnectionIP = md.ConnectionInformation.Address.Address
		}
		for _, a := range md.Attributes {
			pm.Attributes = append(pm.Attributes, attrString(a))
		}
		out.Media = append(out.Media, pm)
	}

	return out, nil
}

func attrString(a sdp.Attribute) string {
	if a.Value == "" {
		return a.Key
	}
	return a.Key + ":" + a.Value
}

func joinProtos(protos []string) string {
	out := ""
	for i, p := range protos {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}

// MediaByType returns the first media section matching mediaType
// ("audio", "video", "image"), mirroring media/sdp's MediaDescription
// lookup but operating over the fully-parsed pion/sdp/v3 tree.
func (p *ParsedSession) MediaByType(mediaType string) (ParsedMedia, bool) {
	for _, m := range p.Media {
		if m.MediaType == mediaType {
			return m, true
		}
	}
	return ParsedMedia{}, false
}
