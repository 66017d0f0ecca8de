// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, p *Parser) []Frame {
	var out []Frame
	for {
		f, ok, err := p.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, f)
	}
}

func TestParserSingleFrame(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed(TFrameData[Message].Get(TMessage).RawBytes)
	out := drain(t, p)
	require.Len(t, out, 1)
	require.Equal(t, *TFrameData[Message].Get(TMessage).Frame, out[0])
	require.Equal(t, 0, p.Buffered())
}

func TestParserPartialFrames(t *testing.T) {
	raw := TFrameData[Message].Get(TMessage).RawBytes
	p := NewParser(V12, 0)
	for i := 0; i < len(raw)-1; i++ {
		p.Feed(raw[i : i+1])
		_, ok, err := p.Next()
		require.NoError(t, err)
		require.False(t, ok)
	}

	p.Feed(raw[len(raw)-1:])
	f, ok, err := p.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Message, f.Command)
	require.Equal(t, `{"content":"hi"}`, string(f.Body))
}

func TestParserMultipleFramesAndHeartbeats(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("\n"))
	p.Feed(append(append([]byte{}, TFrameData[Receipt].Get(TReceipt).RawBytes...), '\n', '\r', '\n'))
	p.Feed(TFrameData[Error].Get(TError).RawBytes)

	out := drain(t, p)
	require.Len(t, out, 4)
	require.True(t, out[0].IsHeartbeat())
	require.Equal(t, Receipt, out[1].Command)
	require.True(t, out[2].IsHeartbeat()) // the first EOL after the receipt is padding
	require.Equal(t, Error, out[3].Command)
}

func TestParserFramePadding(t *testing.T) {
	tt := []struct {
		desc       string
		raw        string
		receipts   int
		heartbeats int
	}{
		{desc: "lf", raw: "RECEIPT\nreceipt-id:1\n\n\x00\n", receipts: 1},
		{desc: "crlf", raw: "RECEIPT\nreceipt-id:1\n\n\x00\r\n", receipts: 1},
		{desc: "padding then heartbeat", raw: "RECEIPT\nreceipt-id:1\n\n\x00\n\n", receipts: 1, heartbeats: 1},
		{desc: "padded frames", raw: "RECEIPT\nreceipt-id:1\n\n\x00\nRECEIPT\nreceipt-id:2\n\n\x00\n", receipts: 2},
	}

	for _, tx := range tt {
		t.Run(tx.desc, func(t *testing.T) {
			p := NewParser(V12, 0)
			p.Feed([]byte(tx.raw))

			var receipts, heartbeats int
			for _, f := range drain(t, p) {
				if f.IsHeartbeat() {
					heartbeats++
				} else {
					receipts++
				}
			}

			require.Equal(t, tx.receipts, receipts)
			require.Equal(t, tx.heartbeats, heartbeats)
			require.Equal(t, 0, p.Buffered())
		})
	}
}

func TestParserPaddingSplitCarriageReturn(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("RECEIPT\nreceipt-id:1\n\n\x00\r"))
	out := drain(t, p)
	require.Len(t, out, 1)

	p.Feed([]byte("\n"))
	require.Empty(t, drain(t, p))
	require.Equal(t, 0, p.Buffered())
}

func TestParserHeartbeatInLaterMessage(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("RECEIPT\nreceipt-id:1\n\n\x00"))
	require.Len(t, drain(t, p), 1)

	p.Feed([]byte("\n"))
	out := drain(t, p)
	require.Len(t, out, 1)
	require.True(t, out[0].IsHeartbeat())
}

func TestParserWaitsForContentLength(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("MESSAGE\nsubscription:0\ncontent-length:1000\n\n"))
	_, ok, err := p.Next()
	require.NoError(t, err)
	require.False(t, ok)

	need := p.Buffered() + 1001
	require.Equal(t, need, p.need)

	for i := 0; i < 999; i++ {
		p.Feed([]byte{0})
		_, ok, err := p.Next()
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, need, p.need)
	}

	p.Feed([]byte{'x', 0})
	f, ok, err := p.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Body, 1000)
	require.Equal(t, byte('x'), f.Body[999])
	require.Equal(t, 0, p.need)
}

func TestParserScansBodyOnce(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("MESSAGE\nsubscription:0\n\n"))
	_, ok, err := p.Next()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "\x00", p.delim)

	for i := 0; i < 100; i++ {
		p.Feed([]byte("a\n"))
		_, ok, err := p.Next()
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, p.Buffered(), p.scan)
	}

	p.Feed([]byte{0})
	f, ok, err := p.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Body, 200)
	require.Equal(t, "", p.delim)
}

func TestParserPartialHeadersError(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("MESSAGE\nbad"))
	_, ok, err := p.Next()
	require.NoError(t, err)
	require.False(t, ok)

	p.Feed([]byte("\n"))
	_, _, err = p.Next()
	require.ErrorIs(t, err, ErrHeaderParse)
}

func TestParserContentLengthTooLarge(t *testing.T) {
	p := NewParser(V12, 64)
	p.Feed([]byte("MESSAGE\ncontent-length:1000\n\n"))
	_, _, err := p.Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestParserContentLengthSpansMessages(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("MESSAGE\nsubscription:0\ncontent-length:4\n\na\x00"))
	_, ok, err := p.Next()
	require.NoError(t, err)
	require.False(t, ok)

	p.Feed([]byte("bc\x00"))
	f, ok, err := p.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a\x00bc"), f.Body)
}

func TestParserCarriageReturnWaits(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("\r"))
	_, ok, err := p.Next()
	require.NoError(t, err)
	require.False(t, ok)

	p.Feed([]byte("\n"))
	f, ok, err := p.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, f.IsHeartbeat())
}

func TestParserStrayCarriageReturn(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("\rX"))
	_, _, err := p.Next()
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestParserMalformed(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed(TMalformedData.Get(TMalUnknownCommand).RawBytes)
	_, ok, err := p.Next()
	require.False(t, ok)
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestParserFrameTooLarge(t *testing.T) {
	p := NewParser(V12, 16)
	p.Feed([]byte("MESSAGE\nsubscription:0\n\n"))
	_, _, err := p.Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestParserCompleteFrameTooLarge(t *testing.T) {
	p := NewParser(V12, 16)
	p.Feed(TFrameData[Message].Get(TMessage).RawBytes)
	_, _, err := p.Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestParserSetVersion(t *testing.T) {
	p := NewParser(V10, 0)
	p.Feed([]byte("MESSAGE\nx-key:a\\cb\n\n\x00"))
	f, ok, err := p.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a\\cb", f.Header.Get("x-key"))

	p.SetVersion(V12)
	p.Feed([]byte("MESSAGE\nx-key:a\\cb\n\n\x00"))
	f, ok, err = p.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a:b", f.Header.Get("x-key"))
}

func TestParserReset(t *testing.T) {
	p := NewParser(V12, 0)
	p.Feed([]byte("MESSAGE\n"))
	require.Equal(t, 8, p.Buffered())
	p.Reset()
	require.Equal(t, 0, p.Buffered())
}
