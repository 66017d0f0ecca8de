// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

import "errors"

// Code contains a reason code and reason string for a client error. Codes sharing
// the same Code byte belong to the same class of failure.
type Code struct {
	Reason string
	Code   byte
}

// String returns the readable reason for a code.
func (c Code) String() string {
	return c.Reason
}

// Error returns the readable reason for a code.
func (c Code) Error() string {
	return c.Reason
}

const (
	ClassUnspecified byte = 0x80
	ClassDecode      byte = 0x81
	ClassProtocol    byte = 0x82
	ClassTransport   byte = 0x83
	ClassLiveness    byte = 0x84
	ClassClient      byte = 0x85
)

var (
	ErrUnspecifiedError      = Code{Code: ClassUnspecified, Reason: "unspecified error"}
	ErrRejectFrame           = Code{Code: ClassUnspecified, Reason: "frame rejected"}
	ErrMalformedFrame        = Code{Code: ClassDecode, Reason: "malformed frame"}
	ErrUnknownCommand        = Code{Code: ClassDecode, Reason: "malformed frame: unknown command"}
	ErrHeaderParse           = Code{Code: ClassDecode, Reason: "malformed frame: header"}
	ErrInvalidEscape         = Code{Code: ClassDecode, Reason: "malformed frame: invalid header escape sequence"}
	ErrInvalidContentLength  = Code{Code: ClassDecode, Reason: "malformed frame: invalid content-length"}
	ErrMissingNull           = Code{Code: ClassDecode, Reason: "malformed frame: body not terminated by null"}
	ErrFrameTooLarge         = Code{Code: ClassDecode, Reason: "malformed frame: frame exceeds maximum size"}
	ErrInvalidHeartBeat      = Code{Code: ClassDecode, Reason: "malformed frame: invalid heart-beat header"}
	ErrProtocolError         = Code{Code: ClassProtocol, Reason: "protocol error"}
	ErrUnsupportedVersion    = Code{Code: ClassProtocol, Reason: "protocol error: unsupported version"}
	ErrTransportOpen         = Code{Code: ClassTransport, Reason: "transport open failed"}
	ErrConnectionClosed      = Code{Code: ClassTransport, Reason: "connection closed"}
	ErrLivenessTimeout       = Code{Code: ClassLiveness, Reason: "liveness timeout: no data received from server"}
	ErrNotConnected          = Code{Code: ClassClient, Reason: "client not connected"}
	ErrAlreadyOpen           = Code{Code: ClassClient, Reason: "connection already open"}
	ErrClientClosed          = Code{Code: ClassClient, Reason: "client closed"}
	ErrPendingWritesExceeded = Code{Code: ClassClient, Reason: "too many pending writes"}
	ErrDestinationDenied     = Code{Code: ClassClient, Reason: "destination not permitted"}
	ErrReceiptPending        = Code{Code: ClassClient, Reason: "receipt id already pending"}
)

// ClassOf returns the class byte of the first Code found in an error chain, or
// ClassUnspecified if the error carries no Code.
func ClassOf(err error) byte {
	var c Code
	if errors.As(err, &c) {
		return c.Code
	}

	return ClassUnspecified
}

// IsDecodeError returns true if the error was produced while decoding inbound bytes.
func IsDecodeError(err error) bool {
	return err != nil && ClassOf(err) == ClassDecode
}
