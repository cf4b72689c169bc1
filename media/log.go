// SPDX-License-Identifier: BSD-2-Clause
// Copyright (C) 2024 Emir Aganovic

package media

import "log/slog"

var defaultLogger = slog.Default()

// DefaultLogger returns the package-wide logger used by the transport
// primitives. Override with SetDefaultLogger to attach call-id fields or
// route through a differently configured handler.
func DefaultLogger() *slog.Logger {
	return defaultLogger
}

func SetDefaultLogger(l *slog.Logger) {
	defaultLogger = l
}
