package status

import (
	"encoding/json"

	"github.com/woozymasta/a2s/pkg/a2s"
)

// RawStatus is the tagged union of known upstream response shapes. Exactly
// one of the edition pointers is set, matching Edition.
type RawStatus struct {
	Java    *JavaStatus
	Bedrock *BedrockPong
	Source  *a2s.Info

	// ResolvedIP is the remote address the probe actually reached, used
	// for GeoIP enrichment. Empty when resolution was not observed.
	ResolvedIP string

	Edition Edition
}

// JavaStatus mirrors the JSON payload of the Java edition server list ping.
// Description is kept raw because upstreams send either a plain string or a
// nested chat-component object.
type JavaStatus struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int              `json:"max"`
		Online int              `json:"online"`
		Sample []JavaPlayerInfo `json:"sample"`
	} `json:"players"`
	Description json.RawMessage `json:"description"`
	Favicon     string          `json:"favicon"`
}

// JavaPlayerInfo is one sample entry. Some status providers decorate the
// entry with a display name distinct from the raw account name.
type JavaPlayerInfo struct {
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
	ID          string `json:"id"`
}

// BedrockPong holds the fields of the RakNet unconnected-pong payload.
type BedrockPong struct {
	Edition         string
	MOTD            string
	SubMOTD         string
	ProtocolVersion string
	Version         string
	GameMode        string
	PlayersOnline   int
	PlayersMax      int
}
