// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ConfigView is the flat channel-variable accessor the spec's §6 external
// interface describes: every tunable is a string keyed by its
// FreeSWITCH-style variable name, looked up one at a time rather than
// through a typed struct the caller must keep in sync.
type ConfigView interface {
	Get(key string) (string, bool)
}

// mapConfigView is the simplest ConfigView: an in-memory map, used by
// tests and by callers that already collected channel variables into a
// map[string]string.
type mapConfigView map[string]string

func (m mapConfigView) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// NewConfigView adapts a plain map into a ConfigView.
func NewConfigView(vars map[string]string) ConfigView {
	return mapConfigView(vars)
}

// EngineConfig is the typed view of the channel variables that actually
// drive the Transport Provisioner's activation step (§6). It is decoded
// from a ConfigView snapshot via mapstructure rather than hand-written
// field-by-field parsing, matching the corpus's config-decoding idiom.
type EngineConfig struct {
	RTPTimeoutSec       int    `mapstructure:"rtp_timeout_sec"`
	RTPHoldTimeoutSec   int    `mapstructure:"rtp_hold_timeout_sec"`
	SecureMedia         string `mapstructure:"rtp_secure_media"`
	JitterBuffer        string `mapstructure:"jitterbuffer_msec"`
	RTCPIntervalMs      int    `mapstructure:"rtcp_audio_interval_msec"`
	DigitDelayMs        int    `mapstructure:"rtp_digit_delay"`
	ManualRTPBugs       string `mapstructure:"rtp_manual_rtp_bugs"`
	NoTimerDuringBridge bool   `mapstructure:"rtp_notimer_during_bridge"`
	RenegOnHold         bool   `mapstructure:"reneg_on_hold"`
	RenegOnReinvite     bool   `mapstructure:"reneg_on_reinvite"`
}

// DecodeEngineConfig decodes the subset of vars relevant to engine
// activation into an EngineConfig, applying mapstructure's
// string-to-int/string-to-bool weak typing since channel variables always
// arrive as strings.
func DecodeEngineConfig(vars map[string]string) (EngineConfig, error) {
	var cfg EngineConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(vars); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// clampDigitDelay enforces the rtp_digit_delay 40-2000ms clamp (§4.11).
func clampDigitDelay(ms int) int {
	switch {
	case ms < 40:
		return 40
	case ms > 2000:
		return 2000
	default:
		return ms
	}
}

// ResolveCodecPreference implements the four-layer codec-string precedence
// (§4.11): absolute_codec_string overrides everything; otherwise
// codec_string is intersected with inherit_codec's carried-over list; then
// ep_codec_string is the final fallback default.
func ResolveCodecPreference(cfg ConfigView) []string {
	if v, ok := cfg.Get("absolute_codec_string"); ok && v != "" {
		return splitCodecString(v)
	}

	var base []string
	if v, ok := cfg.Get("inherit_codec"); ok && v == "true" {
		if v2, ok2 := cfg.Get("ep_codec_string"); ok2 {
			base = splitCodecString(v2)
		}
	}

	if v, ok := cfg.Get("codec_string"); ok && v != "" {
		wanted := splitCodecString(v)
		if len(base) == 0 {
			return wanted
		}
		return intersectOrdered(wanted, base)
	}

	if len(base) > 0 {
		return base
	}

	if v, ok := cfg.Get("ep_codec_string"); ok {
		return splitCodecString(v)
	}
	return nil
}

func splitCodecString(s string) []string {
	fields := strings.Split(s, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// intersectOrdered keeps entries of preferred that also appear in allowed,
// in preferred's order.
func intersectOrdered(preferred, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.ToLower(a)] = struct{}{}
	}
	out := make([]string, 0, len(preferred))
	for _, p := range preferred {
		if _, ok := set[strings.ToLower(p)]; ok {
			out = append(out, p)
		}
	}
	return out
}
