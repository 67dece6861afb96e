package probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/blockhaven/statusd/internal/status"
)

// RakNet unconnected ping/pong packet IDs.
const (
	raknetUnconnectedPing = 0x01
	raknetUnconnectedPong = 0x1c

	// pongHeaderLen covers id(1) + time(8) + guid(8) + magic(16) + strlen(2).
	pongHeaderLen = 35
)

// raknetMagic is the fixed offline-message marker of the RakNet protocol.
var raknetMagic = [16]byte{
	0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
}

// probeBedrock sends a RakNet unconnected ping over UDP and parses the
// semicolon-delimited pong payload.
func (p *Prober) probeBedrock(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
	addr := target.Addr()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return status.RawStatus{}, classify(addr, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	ping := make([]byte, 0, 33)
	ping = append(ping, raknetUnconnectedPing)
	ping = binary.BigEndian.AppendUint64(ping, uint64(time.Now().UnixMilli()))
	ping = append(ping, raknetMagic[:]...)
	ping = binary.BigEndian.AppendUint64(ping, uint64(time.Now().UnixNano())) // client GUID

	if _, err := conn.Write(ping); err != nil {
		return status.RawStatus{}, classify(addr, err)
	}

	buf := make([]byte, int(p.bufferSize))
	n, err := conn.Read(buf)
	if err != nil {
		return status.RawStatus{}, classify(addr, err)
	}

	pong, err := parsePong(buf[:n])
	if err != nil {
		return status.RawStatus{}, protocolError(addr, err)
	}

	raw := status.RawStatus{Edition: status.EditionBedrock, Bedrock: pong}
	if udpAddr, ok := conn.RemoteAddr().(*net.UDPAddr); ok {
		raw.ResolvedIP = udpAddr.IP.String()
	}

	return raw, nil
}

// parsePong validates the unconnected-pong framing and splits its payload.
// Payload fields: edition;motd;protocol;version;online;max;guid;submotd;
// gamemode;... — servers may omit trailing fields.
func parsePong(pkt []byte) (*status.BedrockPong, error) {
	if len(pkt) < pongHeaderLen {
		return nil, fmt.Errorf("pong too short: %d bytes", len(pkt))
	}
	if pkt[0] != raknetUnconnectedPong {
		return nil, fmt.Errorf("unexpected packet id 0x%02x", pkt[0])
	}
	if [16]byte(pkt[17:33]) != raknetMagic {
		return nil, fmt.Errorf("bad raknet magic")
	}

	payloadLen := int(binary.BigEndian.Uint16(pkt[33:35]))
	if pongHeaderLen+payloadLen > len(pkt) {
		return nil, fmt.Errorf("truncated pong payload")
	}

	fields := strings.Split(string(pkt[pongHeaderLen:pongHeaderLen+payloadLen]), ";")
	if len(fields) < 6 {
		return nil, fmt.Errorf("pong payload has %d fields", len(fields))
	}

	pong := &status.BedrockPong{
		Edition:         fields[0],
		MOTD:            fields[1],
		ProtocolVersion: fields[2],
		Version:         fields[3],
	}
	pong.PlayersOnline, _ = strconv.Atoi(fields[4])
	pong.PlayersMax, _ = strconv.Atoi(fields[5])

	if len(fields) > 7 {
		pong.SubMOTD = fields[7]
	}
	if len(fields) > 8 {
		pong.GameMode = fields[8]
	}

	return pong, nil
}
