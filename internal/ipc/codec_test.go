package ipc

import (
	"bytes"
	"testing"

	"github.com/autorun-labs/autorun/internal/realm"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAllMessageShapes(t *testing.T) {
	cases := []Message{
		Ping(),
		Pong(),
		Shutdown(),
		Print("hello world"),
		Print(""),
		RunCode(realm.Client, "Autorun.print('hi')"),
		RunCode(realm.Menu, ""),
		SetWorkspacePath("/home/user/.config/autorun"),
	}

	for _, msg := range cases {
		frame, err := Encode(msg)
		require.NoError(t, err)

		got, err := ReadMessage(bytes.NewReader(frame))
		require.NoError(t, err)
		require.Equal(t, msg, got)
	}
}

func TestFrameLengthPrefixMatchesPayload(t *testing.T) {
	frame, err := Encode(Print("abc"))
	require.NoError(t, err)

	// 4-byte tag+string-len+3 bytes body + 1 tag byte = 8, plus 4-byte frame prefix.
	require.Equal(t, 4+1+4+3, len(frame))
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var lenBuf [4]byte
	lenBuf[0], lenBuf[1], lenBuf[2], lenBuf[3] = 0xFF, 0xFF, 0xFF, 0x7F
	_, err := ReadMessage(bytes.NewReader(lenBuf[:]))
	require.Error(t, err)
}

func TestReadMessageRejectsUnknownTag(t *testing.T) {
	frame := []byte{1, 0, 0, 0, 0xEE}
	_, err := ReadMessage(bytes.NewReader(frame))
	require.Error(t, err)
}

func TestWriteMessageThenReadMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, RunCode(realm.Client, "x = 1")))
	require.NoError(t, WriteMessage(&buf, Ping()))

	first, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, RunCode(realm.Client, "x = 1"), first)

	second, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, Ping(), second)
}
