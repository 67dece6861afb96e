package status

import (
	"encoding/json"
	"strings"
)

// sectionChar prefixes legacy Minecraft formatting codes (e.g. "§a").
const sectionChar = "§"

// Normalize maps a raw upstream response onto the canonical StatusResult.
// It is a pure function: no I/O, deterministic for a given input. QueriedAt
// is left zero for the caller to stamp.
func Normalize(raw RawStatus) StatusResult {
	switch raw.Edition {
	case EditionBedrock:
		if raw.Bedrock != nil {
			return normalizeBedrock(raw.Bedrock)
		}
	case EditionSource:
		if raw.Source != nil {
			return normalizeSource(raw)
		}
	default:
		if raw.Java != nil {
			return normalizeJava(raw.Java)
		}
	}

	return Unreachable("empty upstream response")
}

func normalizeJava(js *JavaStatus) StatusResult {
	res := StatusResult{
		Online:  true,
		Version: js.Version.Name,
		Icon:    StripIconPrefix(js.Favicon),
	}

	res.Players.Online = clampCount(js.Players.Online)
	res.Players.Max = clampCount(js.Players.Max)
	for _, p := range js.Players.Sample {
		name := p.DisplayName
		if name == "" {
			name = p.Name
		}
		res.Players.Sample = append(res.Players.Sample, Player{
			DisplayName: name,
			ID:          p.ID,
		})
	}

	motd := flattenDescription(js.Description)
	res.MOTD = MOTD{Raw: motd, Clean: cleanMOTD(motd)}

	return res
}

func normalizeBedrock(pong *BedrockPong) StatusResult {
	res := StatusResult{
		Online:  true,
		Version: pong.Version,
	}

	res.Players.Online = clampCount(pong.PlayersOnline)
	res.Players.Max = clampCount(pong.PlayersMax)

	// Bedrock splits the banner over two payload fields.
	motd := pong.MOTD
	if pong.SubMOTD != "" {
		motd += "\n" + pong.SubMOTD
	}
	res.MOTD = MOTD{Raw: motd, Clean: cleanMOTD(motd)}

	return res
}

func normalizeSource(raw RawStatus) StatusResult {
	info := raw.Source
	res := StatusResult{
		Online:  true,
		Version: info.Version,
	}

	res.Players.Online = uint(info.Players)
	res.Players.Max = uint(info.MaxPlayers)
	res.MOTD = MOTD{Raw: info.Name, Clean: cleanMOTD(info.Name)}

	return res
}

// StripIconPrefix removes a "data:image/...;base64," prefix from an icon
// payload, leaving only the base64 body. Applying it to an already-stripped
// value is a no-op.
func StripIconPrefix(icon string) string {
	if icon == "" {
		return ""
	}
	if strings.HasPrefix(icon, "data:") {
		if i := strings.Index(icon, "base64,"); i >= 0 {
			return icon[i+len("base64,"):]
		}
	}
	return icon
}

// chatComponent is the recursive Java chat object used for descriptions.
type chatComponent struct {
	Text  string          `json:"text"`
	Extra []chatComponent `json:"extra"`
}

// flattenDescription collapses a description that is either a JSON string
// or a chat-component tree into a single string, formatting codes intact.
func flattenDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var comp chatComponent
	if err := json.Unmarshal(raw, &comp); err != nil {
		return ""
	}

	var b strings.Builder
	flattenComponent(&b, comp)
	return b.String()
}

func flattenComponent(b *strings.Builder, c chatComponent) {
	b.WriteString(c.Text)
	for _, extra := range c.Extra {
		flattenComponent(b, extra)
	}
}

// cleanMOTD strips legacy "§x" formatting codes and trims the result.
func cleanMOTD(s string) string {
	if !strings.Contains(s, sectionChar) {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '§' {
			i++ // skip the code character as well
			continue
		}
		b.WriteRune(runes[i])
	}

	return strings.TrimSpace(b.String())
}

func clampCount(n int) uint {
	if n < 0 {
		return 0
	}
	return uint(n)
}
