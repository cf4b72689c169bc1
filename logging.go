// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultLog is the package logger used by a MediaHandle built without an
// explicit WithLogger option. Grounded on bridge.go/rtp_session.go's
// `log zerolog.Logger` field defaulted from the global `zerolog/log.Logger`.
var defaultLog = log.Logger

// WithLogger overrides the handle's logger, analogous to diago's per-struct
// `log zerolog.Logger` fields threaded in from DiagoOption construction.
func WithLogger(l zerolog.Logger) HandleOption {
	return func(h *MediaHandle) { h.log = l }
}
