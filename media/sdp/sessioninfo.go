// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

// SessionInformation is the "o=" origin line.
// o=<username> <sess-id> <sess-version> <nettype> <addrtype> <unicast-address>
// https://tools.ietf.org/html/rfc4566#section-5.2
type SessionInformation struct {
	Username       string
	SessionID      uint64
	SessionVersion uint64
	NetworkType    string
	AddressType    string
	Address        string
}

func (sd SessionDescription) SessionInformation() (si SessionInformation, err error) {
	v := sd.Value("o")
	if v == "" {
		return si, fmt.Errorf("origin line does not exist")
	}

	fields := strings.Fields(v)
	if len(fields) < 6 {
		return si, fmt.Errorf("not enough fields in origin line")
	}

	si.Username = fields[0]
	si.SessionID, err = strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return si, fmt.Errorf("bad session-id in origin line: %w", err)
	}
	si.SessionVersion, err = strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return si, fmt.Errorf("bad session-version in origin line: %w", err)
	}
	si.NetworkType = fields[3]
	si.AddressType = fields[4]
	si.Address = fields[5]
	return si, nil
}
