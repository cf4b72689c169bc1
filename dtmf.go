// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"fmt"

	"github.com/sipmedia/mediacore/media"
)

// dtmf holds the lazily-constructed RFC 4733 send/receive middleware for one
// RtpEngine, wrapping the negotiated telephone-event payload type onto the
// live transport's packet writer/reader. Grounded on diago's
// DTMFWriter/DTMFReader (dtmf_reader_writer.go), generalized so the payload
// type tracks whatever NegotiateSecurity/processMediaLine agreed rather than
// a hard-coded 101.
type dtmf struct {
	writer *media.RTPDtmfWriter
	reader *media.RTPDtmfReader
}

// dtmfCodec builds the media.Codec the RFC 4733 middleware keys its
// payload-type check against; pass_rfc2833 gates TelephoneEventPT being
// populated at all (offeranswer.go's pass2833), so a leg where it was
// never negotiated returns an error instead of matching payload type 0.
func dtmfCodec(e *RtpEngine) (media.Codec, error) {
	if e.Codec.TelephoneEventPT == 0 {
		return media.Codec{}, fmt.Errorf("mediacore: telephone-event not negotiated on this leg")
	}
	return media.Codec{
		PayloadType: e.Codec.TelephoneEventPT,
		Name:        "telephone-event",
		SampleRate:  8000,
	}, nil
}

// dtmfMiddleware lazily builds the writer/reader pair the first time either
// is needed, caching it on the RtpEngine for the life of the transport.
func (e *RtpEngine) dtmfMiddleware() (*dtmf, error) {
	if e.Transport == nil {
		return nil, newProvisionError("dtmf", e.Kind.String(), fmt.Errorf("transport not provisioned"))
	}
	if e.dtmf != nil {
		return e.dtmf, nil
	}
	codec, err := dtmfCodec(e)
	if err != nil {
		return nil, err
	}
	packetWriter := media.NewRTPPacketWriterMedia(e.Transport)
	packetReader := media.NewRTPPacketReaderSession(e.rtpSessionFor())
	statsReader := &media.RTPStatsReader{
		Reader:     packetReader,
		RTPSession: e.rtpSessionFor(),
		OnRTPReadStats: func(s media.RTPReadStats) {
			e.ReadStats = s
		},
	}
	d := &dtmf{
		writer: media.NewRTPDTMFWriter(codec, packetWriter),
		reader: media.NewRTPDTMFReader(codec, packetReader, statsReader),
	}
	e.dtmf = d
	return d, nil
}

// SendDTMF writes one RFC 4733 telephone-event onto the engine's RTP stream.
func (h *MediaHandle) SendDTMF(kind MediaKind, digit rune) error {
	e := h.engineFor(kind)
	if e == nil {
		return newProvisionError("dtmf", kind.String(), fmt.Errorf("no engine for %s", kind))
	}
	d, err := e.dtmfMiddleware()
	if err != nil {
		return err
	}
	return d.writer.WriteDTMF(digit)
}

// ReadDTMF pulls one RFC 4733 digit already decoded by the background
// receive loop started with OnDTMF, reporting false when none is pending.
func (h *MediaHandle) ReadDTMF(kind MediaKind) (rune, bool) {
	e := h.engineFor(kind)
	if e == nil || e.dtmf == nil {
		return 0, false
	}
	return e.dtmf.reader.ReadDTMF()
}

// OnDTMF starts a background loop draining RTP payloads through the DTMF
// reader and invoking f for each decoded digit, stopping when the transport
// closes. Grounded on diago's DTMFReader.OnDTMF.
func (h *MediaHandle) OnDTMF(kind MediaKind, f func(digit rune)) error {
	e := h.engineFor(kind)
	if e == nil {
		return newProvisionError("dtmf", kind.String(), fmt.Errorf("no engine for %s", kind))
	}
	d, err := e.dtmfMiddleware()
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, media.RTPBufSize)
		for {
			_, err := d.reader.Read(buf)
			if err != nil {
				return
			}
			if digit, ok := d.reader.ReadDTMF(); ok {
				f(digit)
			}
		}
	}()
	return nil
}
