// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

// TFrameCase contains data for cross-checking the encoding and decoding
// of frames and expected scenarios.
type TFrameCase struct {
	RawBytes []byte  // the bytes that make the frame
	Desc     string  // a description of the test
	Frame    *Frame  // the frame that is expected
	Expect   error   // expected decode failure
	Version  Version // the version the frame is encoded or decoded under
	Case     byte    // the identifying byte of the case
	Primary  bool    // the case encodes to exactly RawBytes
}

// TFrameCases is a slice of TFrameCase.
type TFrameCases []TFrameCase

// Get returns a case matching a given T byte.
func (f TFrameCases) Get(b byte) TFrameCase {
	for _, v := range f {
		if v.Case == b {
			return v
		}
	}

	return TFrameCase{}
}

const (
	TConnect byte = iota
	TConnectEscapes
	TConnected
	TConnectedNoVersion
	TSend
	TSendContentLength
	TSendNullInBody
	TSendEscaped10
	TSendEscaped11
	TSendEscaped12
	TSendRepeatedHeader
	TSendEmptyBody
	TSubscribe
	TUnsubscribe
	TMessage
	TMessageCRLF
	TReceipt
	TError
	TDisconnect
	THeartbeat
	THeartbeatCRLF
	TMalNoCommand
	TMalUnknownCommand
	TMalHeaderSeparator
	TMalInvalidEscape
	TMalCarriageEscape11
	TMalContentLength
	TMalContentLengthShort
	TMalNullInCommand
	TMalTrailing
	TMalNoNull
)

// TFrameData contains individual encoding and decoding scenarios for each command.
var TFrameData = map[Command]TFrameCases{
	Connect: {
		{
			Case:     TConnect,
			Desc:     "connect",
			Primary:  true,
			Version:  V10,
			RawBytes: []byte("CONNECT\naccept-version:1.2,1.1,1.0\nhost:localhost\nheart-beat:10000,10000\n\n\x00"),
			Frame: &Frame{
				Command: Connect,
				Header:  NewHeader(HeaderAcceptVersion, "1.2,1.1,1.0", HeaderHost, "localhost", HeaderHeartBeat, "10000,10000"),
			},
		},
		{
			Case:     TConnectEscapes,
			Desc:     "connect headers are never escaped",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("CONNECT\nlogin:a:b\\c\npasscode:p\n\n\x00"),
			Frame: &Frame{
				Command: Connect,
				Header:  NewHeader(HeaderLogin, "a:b\\c", HeaderPasscode, "p"),
			},
		},
	},
	Connected: {
		{
			Case:     TConnected,
			Desc:     "connected",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("CONNECTED\nversion:1.2\nheart-beat:0,5000\nsession:s-1\nserver:broker/1.0\n\n\x00"),
			Frame: &Frame{
				Command: Connected,
				Header:  NewHeader(HeaderVersion, "1.2", HeaderHeartBeat, "0,5000", HeaderSession, "s-1", HeaderServer, "broker/1.0"),
			},
		},
		{
			Case:     TConnectedNoVersion,
			Desc:     "connected without version",
			Primary:  true,
			Version:  V10,
			RawBytes: []byte("CONNECTED\nsession:s-2\n\n\x00"),
			Frame: &Frame{
				Command: Connected,
				Header:  NewHeader(HeaderSession, "s-2"),
			},
		},
	},
	Send: {
		{
			Case:     TSend,
			Desc:     "send",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("SEND\ndestination:/app/hello\n\nhello\x00"),
			Frame: &Frame{
				Command: Send,
				Header:  NewHeader(HeaderDestination, "/app/hello"),
				Body:    []byte("hello"),
			},
		},
		{
			Case:     TSendContentLength,
			Desc:     "send with content-length",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("SEND\ndestination:/app/hello\ncontent-length:5\n\nhello\x00"),
			Frame: &Frame{
				Command: Send,
				Header:  NewHeader(HeaderDestination, "/app/hello", HeaderContentLength, "5"),
				Body:    []byte("hello"),
			},
		},
		{
			Case:     TSendNullInBody,
			Desc:     "send with null in body",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("SEND\ndestination:/a\ncontent-length:3\n\na\x00b\x00"),
			Frame: &Frame{
				Command: Send,
				Header:  NewHeader(HeaderDestination, "/a", HeaderContentLength, "3"),
				Body:    []byte("a\x00b"),
			},
		},
		{
			Case:     TSendEscaped10,
			Desc:     "send under 1.0 is not escaped",
			Primary:  true,
			Version:  V10,
			RawBytes: []byte("SEND\ndestination:/a\nx-key:a:b\\c\n\n\x00"),
			Frame: &Frame{
				Command: Send,
				Header:  NewHeader(HeaderDestination, "/a", "x-key", "a:b\\c"),
			},
		},
		{
			Case:     TSendEscaped11,
			Desc:     "send under 1.1 is escaped",
			Primary:  true,
			Version:  V11,
			RawBytes: []byte("SEND\ndestination:/a\nx-key:a\\cb\\\\c\\nd\n\n\x00"),
			Frame: &Frame{
				Command: Send,
				Header:  NewHeader(HeaderDestination, "/a", "x-key", "a:b\\c\nd"),
			},
		},
		{
			Case:     TSendEscaped12,
			Desc:     "send under 1.2 escapes carriage return",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("SEND\ndestination:/a\nx\\ckey:a\\rb\n\n\x00"),
			Frame: &Frame{
				Command: Send,
				Header:  NewHeader(HeaderDestination, "/a", "x:key", "a\rb"),
			},
		},
		{
			Case:     TSendRepeatedHeader,
			Desc:     "repeated headers are kept in order",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("SEND\ndestination:/a\nx-key:first\nx-key:second\n\n\x00"),
			Frame: &Frame{
				Command: Send,
				Header:  NewHeader(HeaderDestination, "/a", "x-key", "first", "x-key", "second"),
			},
		},
		{
			Case:     TSendEmptyBody,
			Desc:     "zero-length body without content-length",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("SEND\ndestination:/a\n\n\x00"),
			Frame: &Frame{
				Command: Send,
				Header:  NewHeader(HeaderDestination, "/a"),
			},
		},
	},
	Subscribe: {
		{
			Case:     TSubscribe,
			Desc:     "subscribe",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("SUBSCRIBE\nid:0\ndestination:/topic/greetings\nack:auto\n\n\x00"),
			Frame: &Frame{
				Command: Subscribe,
				Header:  NewHeader(HeaderID, "0", HeaderDestination, "/topic/greetings", HeaderAck, "auto"),
			},
		},
	},
	Unsubscribe: {
		{
			Case:     TUnsubscribe,
			Desc:     "unsubscribe",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("UNSUBSCRIBE\nid:0\n\n\x00"),
			Frame: &Frame{
				Command: Unsubscribe,
				Header:  NewHeader(HeaderID, "0"),
			},
		},
	},
	Message: {
		{
			Case:     TMessage,
			Desc:     "message",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("MESSAGE\nsubscription:0\nmessage-id:m-1\ndestination:/topic/greetings\ncontent-type:application/json\n\n{\"content\":\"hi\"}\x00"),
			Frame: &Frame{
				Command: Message,
				Header:  NewHeader(HeaderSubscription, "0", HeaderMessageID, "m-1", HeaderDestination, "/topic/greetings", HeaderContentType, "application/json"),
				Body:    []byte(`{"content":"hi"}`),
			},
		},
		{
			Case:     TMessageCRLF,
			Desc:     "message with crlf line endings",
			Version:  V12,
			RawBytes: []byte("MESSAGE\r\nsubscription:0\r\nmessage-id:m-2\r\n\r\nx\x00"),
			Frame: &Frame{
				Command: Message,
				Header:  NewHeader(HeaderSubscription, "0", HeaderMessageID, "m-2"),
				Body:    []byte("x"),
			},
		},
	},
	Receipt: {
		{
			Case:     TReceipt,
			Desc:     "receipt",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("RECEIPT\nreceipt-id:r-1\n\n\x00"),
			Frame: &Frame{
				Command: Receipt,
				Header:  NewHeader(HeaderReceiptID, "r-1"),
			},
		},
	},
	Error: {
		{
			Case:     TError,
			Desc:     "error",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("ERROR\nmessage:malformed frame received\ncontent-type:text/plain\n\ndetail\x00"),
			Frame: &Frame{
				Command: Error,
				Header:  NewHeader(HeaderMessage, "malformed frame received", HeaderContentType, "text/plain"),
				Body:    []byte("detail"),
			},
		},
	},
	Disconnect: {
		{
			Case:     TDisconnect,
			Desc:     "disconnect",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("DISCONNECT\nreceipt:r-9\n\n\x00"),
			Frame: &Frame{
				Command: Disconnect,
				Header:  NewHeader(HeaderReceipt, "r-9"),
			},
		},
	},
	Heartbeat: {
		{
			Case:     THeartbeat,
			Desc:     "heartbeat",
			Primary:  true,
			Version:  V12,
			RawBytes: []byte("\n"),
			Frame:    &Frame{Command: Heartbeat},
		},
		{
			Case:     THeartbeatCRLF,
			Desc:     "heartbeat crlf",
			Version:  V12,
			RawBytes: []byte("\r\n"),
			Frame:    &Frame{Command: Heartbeat},
		},
	},
}

// TMalformedData contains scenarios which must fail to decode.
var TMalformedData = TFrameCases{
	{
		Case:     TMalNoCommand,
		Desc:     "no command line",
		Version:  V12,
		RawBytes: []byte("\x00"),
		Expect:   ErrMalformedFrame,
	},
	{
		Case:     TMalUnknownCommand,
		Desc:     "unknown command",
		Version:  V12,
		RawBytes: []byte("PUBLISH\ndestination:/a\n\n\x00"),
		Expect:   ErrUnknownCommand,
	},
	{
		Case:     TMalHeaderSeparator,
		Desc:     "header without separator",
		Version:  V12,
		RawBytes: []byte("MESSAGE\nsubscription\n\n\x00"),
		Expect:   ErrHeaderParse,
	},
	{
		Case:     TMalInvalidEscape,
		Desc:     "undefined escape sequence",
		Version:  V12,
		RawBytes: []byte("MESSAGE\nsubscription:a\\tb\n\n\x00"),
		Expect:   ErrInvalidEscape,
	},
	{
		Case:     TMalCarriageEscape11,
		Desc:     "carriage return escape under 1.1",
		Version:  V11,
		RawBytes: []byte("MESSAGE\nsubscription:a\\rb\n\n\x00"),
		Expect:   ErrHeaderParse,
	},
	{
		Case:     TMalContentLength,
		Desc:     "content-length not a number",
		Version:  V12,
		RawBytes: []byte("MESSAGE\ncontent-length:abc\n\nx\x00"),
		Expect:   ErrInvalidContentLength,
	},
	{
		Case:     TMalContentLengthShort,
		Desc:     "content-length shorter than body",
		Version:  V12,
		RawBytes: []byte("MESSAGE\ncontent-length:1\n\nabc\x00"),
		Expect:   ErrMissingNull,
	},
	{
		Case:     TMalNullInCommand,
		Desc:     "null inside command line",
		Version:  V12,
		RawBytes: []byte("MESS\x00AGE\n\n\x00"),
		Expect:   ErrMalformedFrame,
	},
	{
		Case:     TMalTrailing,
		Desc:     "trailing bytes after null",
		Version:  V12,
		RawBytes: []byte("RECEIPT\nreceipt-id:1\n\n\x00junk"),
		Expect:   ErrMalformedFrame,
	},
	{
		Case:     TMalNoNull,
		Desc:     "missing null terminator",
		Version:  V12,
		RawBytes: []byte("RECEIPT\nreceipt-id:1\n\n"),
		Expect:   ErrMalformedFrame,
	},
}
