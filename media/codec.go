// SPDX-License-Identifier: BSD-2-Clause
// Copyright (C) 2024 Emir Aganovic

package media

import (
	"strconv"
	"strings"
	"time"
)

var (
	CodecAudioUlaw          = Codec{PayloadType: 0, Name: "PCMU", SampleRate: 8000, SampleDur: 20 * time.Millisecond, NumChannels: 1}
	CodecAudioAlaw          = Codec{PayloadType: 8, Name: "PCMA", SampleRate: 8000, SampleDur: 20 * time.Millisecond, NumChannels: 1}
	CodecAudioOpus          = Codec{PayloadType: 96, Name: "opus", SampleRate: 48000, SampleDur: 20 * time.Millisecond, NumChannels: 2}
	CodecTelephoneEvent8000 = Codec{PayloadType: 101, Name: "telephone-event", SampleRate: 8000, SampleDur: 20 * time.Millisecond, NumChannels: 1}
)

// Codec is the minimal description a live transport needs to packetize/depacketize
// a stream: payload type, clock rate and nominal packetization duration.
// Negotiated naming/fmtp/channel semantics live in the core's CodecParams; this is
// only what the RTP/RTCP read-write path and ptime auto-fix machine need.
type Codec struct {
	PayloadType uint8
	Name        string
	SampleRate  uint32
	SampleDur   time.Duration
	NumChannels int
}

func (c *Codec) SampleTimestamp() uint32 {
	return uint32(float64(c.SampleRate) * c.SampleDur.Seconds())
}

// SamplesPerMs is used by the ptime auto-fix state machine to convert an
// observed RTP timestamp delta into milliseconds.
func (c *Codec) SamplesPerMs() float64 {
	return float64(c.SampleRate) / 1000
}

func CodecFromSession(s *MediaSession) Codec {
	if len(s.Codecs) == 0 {
		return CodecAudioUlaw
	}
	return s.Codecs[0]
}

func CodecFromPayloadType(payloadType uint8) Codec {
	switch payloadType {
	case CodecAudioUlaw.PayloadType:
		return CodecAudioUlaw
	case CodecAudioAlaw.PayloadType:
		return CodecAudioAlaw
	case CodecTelephoneEvent8000.PayloadType:
		return CodecTelephoneEvent8000
	}
	c := CodecAudioUlaw
	c.PayloadType = payloadType
	return c
}

func codecFromPayloadTypeString(pt string) Codec {
	n, err := strconv.Atoi(pt)
	if err != nil {
		return CodecAudioUlaw
	}
	return CodecFromPayloadType(uint8(n))
}

// rtpmapCodec parses a single SDP "a=rtpmap:<pt> <name>/<clockrate>[/<channels>]"
// attribute value, returning the described codec and whether it matched pt.
func rtpmapCodec(pt uint8, attr string) (Codec, bool) {
	rest, ok := strings.CutPrefix(attr, "rtpmap:")
	if !ok {
		return Codec{}, false
	}
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return Codec{}, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || uint8(n) != pt {
		return Codec{}, false
	}

	parts := strings.Split(fields[1], "/")
	c := Codec{PayloadType: pt, Name: parts[0], NumChannels: 1}
	if len(parts) > 1 {
		if rate, err := strconv.Atoi(parts[1]); err == nil {
			c.SampleRate = uint32(rate)
		}
	}
	if len(parts) > 2 {
		if ch, err := strconv.Atoi(parts[2]); err == nil {
			c.NumChannels = ch
		}
	}
	c.SampleDur = 20 * time.Millisecond
	return c, true
}

// CodecsFromSDPRead resolves each payload type in formats to a Codec, preferring
// an explicit "a=rtpmap" match from attrs and falling back to the well-known
// static payload type assignment (RFC 3551) otherwise. It writes into out and
// returns how many codecs were written.
func CodecsFromSDPRead(formats []string, attrs []string, out []Codec) (int, error) {
	n := 0
	for _, f := range formats {
		if n >= len(out) {
			break
		}
		pt, err := strconv.Atoi(f)
		if err != nil {
			continue
		}

		codec := CodecFromPayloadType(uint8(pt))
		for _, a := range attrs {
			if c, ok := rtpmapCodec(uint8(pt), a); ok {
				codec = c
				break
			}
		}

		out[n] = codec
		n++
	}
	return n, nil
}
