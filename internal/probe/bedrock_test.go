package probe

import (
	"context"
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockhaven/statusd/internal/status"
)

// buildPong assembles a valid unconnected-pong packet around the payload.
func buildPong(payload string) []byte {
	pkt := make([]byte, 0, pongHeaderLen+len(payload))
	pkt = append(pkt, raknetUnconnectedPong)
	pkt = binary.BigEndian.AppendUint64(pkt, 12345) // time
	pkt = binary.BigEndian.AppendUint64(pkt, 67890) // server GUID
	pkt = append(pkt, raknetMagic[:]...)
	pkt = binary.BigEndian.AppendUint16(pkt, uint16(len(payload)))
	pkt = append(pkt, payload...)
	return pkt
}

func TestParsePong(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		pong, err := parsePong(buildPong(
			"MCPE;§aMain banner;712;1.21.0;12;40;1234567890;Sub banner;Survival;1;19132;19133;",
		))
		require.NoError(t, err)

		assert.Equal(t, "MCPE", pong.Edition)
		assert.Equal(t, "§aMain banner", pong.MOTD)
		assert.Equal(t, "Sub banner", pong.SubMOTD)
		assert.Equal(t, "712", pong.ProtocolVersion)
		assert.Equal(t, "1.21.0", pong.Version)
		assert.Equal(t, 12, pong.PlayersOnline)
		assert.Equal(t, 40, pong.PlayersMax)
		assert.Equal(t, "Survival", pong.GameMode)
	})

	t.Run("minimal payload", func(t *testing.T) {
		pong, err := parsePong(buildPong("MCPE;banner;712;1.21.0;0;10"))
		require.NoError(t, err)

		assert.Equal(t, "banner", pong.MOTD)
		assert.Empty(t, pong.SubMOTD)
		assert.Equal(t, 0, pong.PlayersOnline)
		assert.Equal(t, 10, pong.PlayersMax)
	})

	t.Run("rejects bad packets", func(t *testing.T) {
		testCases := []struct {
			name string
			pkt  []byte
		}{
			{"too short", []byte{raknetUnconnectedPong, 0x00}},
			{"wrong id", func() []byte {
				pkt := buildPong("MCPE;x;1;1;0;1")
				pkt[0] = 0x05
				return pkt
			}()},
			{"bad magic", func() []byte {
				pkt := buildPong("MCPE;x;1;1;0;1")
				pkt[17] = 0xab
				return pkt
			}()},
			{"too few fields", buildPong("MCPE;x;1")},
			{"truncated payload", func() []byte {
				pkt := buildPong("MCPE;x;1;1;0;1")
				binary.BigEndian.PutUint16(pkt[33:35], 500)
				return pkt
			}()},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := parsePong(tc.pkt)
				assert.Error(t, err)
			})
		}
	})
}

func TestProbeBedrock(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	go func() {
		buf := make([]byte, 64)
		_, addr, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		_, _ = pc.WriteTo(buildPong("MCPE;A bedrock server;712;1.21.0;2;20;42;Second line;Creative"), addr)
	}()

	port := uint16(pc.LocalAddr().(*net.UDPAddr).Port)
	target := status.ServerTarget{Host: "127.0.0.1", Port: port, Edition: status.EditionBedrock}

	raw, err := testProber().Probe(context.Background(), target)
	require.NoError(t, err)

	require.NotNil(t, raw.Bedrock)
	assert.Equal(t, status.EditionBedrock, raw.Edition)
	assert.Equal(t, "A bedrock server", raw.Bedrock.MOTD)
	assert.Equal(t, "Second line", raw.Bedrock.SubMOTD)
	assert.Equal(t, 2, raw.Bedrock.PlayersOnline)
	assert.Equal(t, "127.0.0.1", raw.ResolvedIP)
}
