// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"fmt"
	"sync"

	"github.com/sipmedia/mediacore/media"
)

// silenceStream implements media.MediaStreamer (media/media_stream.go) by
// writing zero-filled frames at the codec's native cadence until stopped,
// matching generateSilentAudioFrame's zero-fill convention in
// media/rtp_utils.go. It is the payload behind SilenceMOHProvider, the
// built-in indicate_hold/"silence" moh_sound source (§4.7). Writes go
// through a RTPSession-backed RTPStatsWriter (media/rtp_stats_reader_writer.go)
// so a caller can inspect how much MOH audio actually reached the wire.
type silenceStream struct {
	stop    chan struct{}
	onStats media.OnRTPWriteStats
}

func (s *silenceStream) MediaStream(sess *media.MediaSession) error {
	codec := media.CodecFromSession(sess)
	frameLen := int(codec.SampleTimestamp())
	if frameLen <= 0 {
		frameLen = 160
	}
	frame := make([]byte, frameLen)

	// A fresh RTPSession per MOH run rather than sess's shared one: Close
	// would set a deadline on the session's rtcpConn, aborting RTCP for
	// whatever else is using it. TODO: stop this session's own rtcpTicker
	// on exit once RTPSession exposes a way to do that without affecting
	// the underlying MediaSession.
	rtpSession := media.NewRTPSession(sess)
	writer := &media.RTPStatsWriter{
		Writer:          media.NewRTPPacketWriterSession(rtpSession),
		RTPSession:      rtpSession,
		OnRTPWriteStats: s.onStats,
	}
	for {
		select {
		case <-s.stop:
			return nil
		default:
		}
		if _, err := writer.Write(frame); err != nil {
			return err
		}
	}
}

// SilenceMOHProvider implements the StartMOH/StopMOH half of MOHProvider
// (environment.go) by playing silence on the handle's audio transport
// rather than delegating to an external music source, covering the
// moh_sound values "silence" and "indicate_hold" (§4.7/§6). A full
// MediaEnvironment embeds it and supplies SetPresence plus the rest of the
// collaborator bundle.
type SilenceMOHProvider struct {
	mu    sync.Mutex
	runs  map[*MediaHandle]chan struct{}
	stats map[*MediaHandle]media.RTPWriteStats
}

func NewSilenceMOHProvider() *SilenceMOHProvider {
	return &SilenceMOHProvider{
		runs:  make(map[*MediaHandle]chan struct{}),
		stats: make(map[*MediaHandle]media.RTPWriteStats),
	}
}

func (p *SilenceMOHProvider) StartMOH(h *MediaHandle) error {
	if h.Audio.Transport == nil {
		return newProvisionError("moh", MediaKindAudio.String(), fmt.Errorf("transport not provisioned"))
	}
	p.mu.Lock()
	if _, running := p.runs[h]; running {
		p.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	p.runs[h] = stop
	p.mu.Unlock()

	stream := &silenceStream{
		stop: stop,
		onStats: func(s media.RTPWriteStats) {
			p.mu.Lock()
			p.stats[h] = s
			p.mu.Unlock()
		},
	}
	go stream.MediaStream(h.Audio.Transport)
	return nil
}

// WriteStats reports the last recorded RTCP write-side quality snapshot for
// a handle currently (or previously) playing MOH, or the zero value if none
// has started yet.
func (p *SilenceMOHProvider) WriteStats(h *MediaHandle) media.RTPWriteStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats[h]
}

func (p *SilenceMOHProvider) StopMOH(h *MediaHandle) error {
	p.mu.Lock()
	stop, running := p.runs[h]
	delete(p.runs, h)
	p.mu.Unlock()
	if running {
		close(stop)
	}
	return nil
}
