package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/blockhaven/statusd/internal/status"
)

// Server list ping packet IDs and limits.
const (
	handshakePacketID   = 0x00
	statusRequestID     = 0x00
	handshakeStateQuery = 1

	// protocolVersionAny asks the server to answer regardless of client
	// version.
	protocolVersionAny = -1

	// maxStatusPayload bounds the JSON body a server may send back.
	maxStatusPayload = 1 << 21
)

var errVarIntTooLarge = errors.New("varint exceeds 5 bytes")

// probeJava performs the Java edition server list ping: a VarInt-framed TCP
// handshake followed by a status request, answered with a JSON document.
func (p *Prober) probeJava(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
	addr := target.Addr()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return status.RawStatus{}, classify(addr, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Handshake: intent "status" for our host:port.
	var hs bytes.Buffer
	writeVarInt(&hs, handshakePacketID)
	writeVarInt(&hs, protocolVersionAny)
	writeString(&hs, target.Host)
	_ = binary.Write(&hs, binary.BigEndian, target.Port)
	writeVarInt(&hs, handshakeStateQuery)

	if err := writeFrame(conn, hs.Bytes()); err != nil {
		return status.RawStatus{}, classify(addr, err)
	}

	// Status request is an empty packet.
	if err := writeFrame(conn, []byte{statusRequestID}); err != nil {
		return status.RawStatus{}, classify(addr, err)
	}

	br := bufio.NewReader(conn)

	frameLen, err := readVarInt(br)
	if err != nil {
		return status.RawStatus{}, classify(addr, err)
	}
	if frameLen <= 0 || frameLen > maxStatusPayload {
		return status.RawStatus{}, protocolError(addr, fmt.Errorf("bad frame length %d", frameLen))
	}

	packetID, err := readVarInt(br)
	if err != nil {
		return status.RawStatus{}, classify(addr, err)
	}
	if packetID != statusRequestID {
		return status.RawStatus{}, protocolError(addr, fmt.Errorf("unexpected packet id 0x%02x", packetID))
	}

	bodyLen, err := readVarInt(br)
	if err != nil {
		return status.RawStatus{}, classify(addr, err)
	}
	if bodyLen <= 0 || bodyLen > maxStatusPayload {
		return status.RawStatus{}, protocolError(addr, fmt.Errorf("bad status length %d", bodyLen))
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(br, body); err != nil {
		return status.RawStatus{}, classify(addr, err)
	}

	var js status.JavaStatus
	if err := json.Unmarshal(body, &js); err != nil {
		return status.RawStatus{}, protocolError(addr, err)
	}

	raw := status.RawStatus{Edition: status.EditionJava, Java: &js}
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		raw.ResolvedIP = tcpAddr.IP.String()
	}

	return raw, nil
}

// writeFrame sends one length-prefixed protocol packet.
func writeFrame(w io.Writer, payload []byte) error {
	var frame bytes.Buffer
	writeVarInt(&frame, int32(len(payload)))
	frame.Write(payload)
	_, err := w.Write(frame.Bytes())
	return err
}

// writeVarInt encodes v in the protocol's little-endian base-128 form.
func writeVarInt(b *bytes.Buffer, v int32) {
	u := uint32(v)
	for {
		c := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			c |= 0x80
		}
		b.WriteByte(c)
		if u == 0 {
			return
		}
	}
}

// readVarInt decodes a VarInt of at most 5 bytes.
func readVarInt(r io.ByteReader) (int32, error) {
	var v uint32
	for i := 0; ; i++ {
		if i >= 5 {
			return 0, errVarIntTooLarge
		}
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(c&0x7f) << (7 * uint(i))
		if c&0x80 == 0 {
			return int32(v), nil
		}
	}
}

// writeString encodes a VarInt-length-prefixed UTF-8 string.
func writeString(b *bytes.Buffer, s string) {
	writeVarInt(b, int32(len(s)))
	b.WriteString(s)
}
