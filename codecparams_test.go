// SPDX-License-Identifier: MPL-2.0
// Copyright (C) 2024 Emir Aganovic

package mediacore

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointStringAndZero(t *testing.T) {
	var e Endpoint
	assert.True(t, e.IsZero())
	assert.Equal(t, "", e.String())

	e = Endpoint{IP: net.ParseIP("10.0.0.1"), Port: 5000}
	assert.False(t, e.IsZero())
	assert.Equal(t, "10.0.0.1:5000", e.String())
}

func TestCodecParamsDefaultBitrate(t *testing.T) {
	c := CodecParams{CanonicalName: "ilbc"}
	ptime, bps := c.DefaultBitrate()
	assert.Equal(t, 30, ptime)
	assert.Equal(t, 13330, bps)
	assert.True(t, c.IsILBC())

	c2 := CodecParams{CanonicalName: "pcmu"}
	ptime2, bps2 := c2.DefaultBitrate()
	assert.Equal(t, 0, ptime2)
	assert.Equal(t, 0, bps2)
	assert.False(t, c2.IsISAC())
}
