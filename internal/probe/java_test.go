package probe

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockhaven/statusd/internal/config"
	"github.com/blockhaven/statusd/internal/status"
)

func testProber() *Prober {
	return New(config.Probe{
		Timeout:      2 * time.Second,
		BufferSize:   1400,
		MaxPerSecond: 1000,
		Burst:        1000,
	})
}

func TestVarInt(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		testCases := []int32{0, 1, 127, 128, 255, 25565, 2097151, 2147483647, -1}
		for _, v := range testCases {
			var buf bytes.Buffer
			writeVarInt(&buf, v)

			got, err := readVarInt(&buf)
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("rejects oversized encoding", func(t *testing.T) {
		r := bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
		_, err := readVarInt(r)
		assert.ErrorIs(t, err, errVarIntTooLarge)
	})
}

// fakeJavaServer answers one server list ping with the given JSON document.
func fakeJavaServer(t *testing.T, statusJSON string) uint16 {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		br := bufio.NewReader(conn)
		discardFrame(br) // handshake
		discardFrame(br) // status request

		var body bytes.Buffer
		writeVarInt(&body, statusRequestID)
		writeString(&body, statusJSON)
		_ = writeFrame(conn, body.Bytes())
	}()

	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func discardFrame(br *bufio.Reader) {
	n, err := readVarInt(br)
	if err != nil || n <= 0 {
		return
	}
	_, _ = io.CopyN(io.Discard, br, int64(n))
}

func TestProbeJava(t *testing.T) {
	t.Run("reachable server", func(t *testing.T) {
		port := fakeJavaServer(t, `{
			"version": {"name": "Paper 1.21.1", "protocol": 767},
			"players": {"max": 100, "online": 7, "sample": [{"name": "steve", "id": "uuid-1"}]},
			"description": {"text": "welcome"},
			"favicon": "data:image/png;base64,AAAA"
		}`)

		target := status.ServerTarget{Host: "127.0.0.1", Port: port, Edition: status.EditionJava}
		raw, err := testProber().Probe(context.Background(), target)
		require.NoError(t, err)

		require.NotNil(t, raw.Java)
		assert.Equal(t, status.EditionJava, raw.Edition)
		assert.Equal(t, "Paper 1.21.1", raw.Java.Version.Name)
		assert.Equal(t, 7, raw.Java.Players.Online)
		assert.Equal(t, 100, raw.Java.Players.Max)
		require.Len(t, raw.Java.Players.Sample, 1)
		assert.Equal(t, "steve", raw.Java.Players.Sample[0].Name)
		assert.Equal(t, "127.0.0.1", raw.ResolvedIP)
	})

	t.Run("connection refused", func(t *testing.T) {
		// Grab a port and close it again so nothing listens there.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := uint16(ln.Addr().(*net.TCPAddr).Port)
		require.NoError(t, ln.Close())

		target := status.ServerTarget{Host: "127.0.0.1", Port: port, Edition: status.EditionJava}
		_, err = testProber().Probe(context.Background(), target)
		require.Error(t, err)

		var pErr *Error
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, KindRefused, pErr.Kind)
		assert.NotEmpty(t, pErr.Reason())
	})

	t.Run("unresponsive server times out", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		t.Cleanup(func() { _ = ln.Close() })
		go func() {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer func() { _ = conn.Close() }()
			time.Sleep(2 * time.Second) // never answer
		}()

		p := New(config.Probe{
			Timeout:      150 * time.Millisecond,
			BufferSize:   1400,
			MaxPerSecond: 1000,
			Burst:        1000,
		})

		port := uint16(ln.Addr().(*net.TCPAddr).Port)
		target := status.ServerTarget{Host: "127.0.0.1", Port: port, Edition: status.EditionJava}

		start := time.Now()
		_, err = p.Probe(context.Background(), target)
		elapsed := time.Since(start)

		require.Error(t, err)
		var pErr *Error
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, KindTimeout, pErr.Kind)
		assert.Less(t, elapsed, time.Second, "timeout must bound the probe")
	})

	t.Run("malformed response", func(t *testing.T) {
		port := fakeJavaServer(t, `this is not json`)

		target := status.ServerTarget{Host: "127.0.0.1", Port: port, Edition: status.EditionJava}
		_, err := testProber().Probe(context.Background(), target)
		require.Error(t, err)

		var pErr *Error
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, KindProtocol, pErr.Kind)
	})
}
