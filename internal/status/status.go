// Package status defines the canonical server-status model, the target
// addressing scheme, and the normalization of heterogeneous upstream
// responses into one StatusResult shape.
package status

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Edition identifies the wire protocol spoken by a game server.
type Edition string

// Supported server editions.
const (
	EditionJava    Edition = "java"
	EditionBedrock Edition = "bedrock"
	EditionSource  Edition = "source"
)

// Valid reports whether e is one of the supported editions.
func (e Edition) Valid() bool {
	switch e {
	case EditionJava, EditionBedrock, EditionSource:
		return true
	}
	return false
}

// DefaultPort returns the conventional query port for the edition.
func (e Edition) DefaultPort() uint16 {
	switch e {
	case EditionBedrock:
		return 19132
	case EditionSource:
		return 27015
	default:
		return 25565
	}
}

// ServerTarget identifies one queryable endpoint. It is immutable per lookup.
type ServerTarget struct {
	Host    string  `json:"host"`
	Edition Edition `json:"edition"`
	Port    uint16  `json:"port"`
}

// Key returns the cache key for the target in "host:port" form.
func (t ServerTarget) Key() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Addr returns the dialable address of the target, bracketing IPv6 hosts.
func (t ServerTarget) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

// Player is one entry of the online-player sample.
type Player struct {
	DisplayName string `json:"display_name"`
	ID          string `json:"id,omitempty"`
}

// Players holds online/max counts and the (possibly truncated) sample the
// upstream chose to expose. Online and Max are always present, zero when
// the server is offline.
type Players struct {
	Online uint     `json:"online"`
	Max    uint     `json:"max"`
	Sample []Player `json:"sample,omitempty"`
}

// MOTD is the server banner text in raw (formatting codes preserved) and
// clean (codes stripped) form.
type MOTD struct {
	Raw   string `json:"raw,omitempty"`
	Clean string `json:"clean,omitempty"`
}

// StatusResult is the canonical outcome of one probe.
type StatusResult struct {
	QueriedAt   time.Time `json:"queried_at"`
	Version     string    `json:"version,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	Error       string    `json:"error,omitempty"`
	MOTD        MOTD      `json:"motd"`
	Players     Players   `json:"players"`
	Online      bool      `json:"online"`
}

// Unreachable builds the offline result cached for a failed probe.
func Unreachable(reason string) StatusResult {
	return StatusResult{Online: false, Error: reason}
}

// ValidationError describes malformed caller input. It is the only error
// class surfaced synchronously from target parsing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Public lookup type names accepted on the HTTP surface.
const (
	TypeJava    = "minecraft"
	TypeBedrock = "minecraft_bedrock"
	TypeSource  = "source"
)

// ParseType maps a public lookup type name onto an edition.
func ParseType(typ string) (Edition, error) {
	switch typ {
	case TypeJava:
		return EditionJava, nil
	case TypeBedrock:
		return EditionBedrock, nil
	case TypeSource:
		return EditionSource, nil
	}
	return "", &ValidationError{Field: "type", Reason: "unknown server type"}
}

// ParseTarget parses a "host[:port]" string and a public type name into a
// validated ServerTarget, applying the edition's default port when none is
// given.
func ParseTarget(server, typ string) (ServerTarget, error) {
	edition, err := ParseType(typ)
	if err != nil {
		return ServerTarget{}, err
	}

	host, portStr, err := splitServer(server)
	if err != nil {
		return ServerTarget{}, err
	}

	port := edition.DefaultPort()
	if portStr != "" {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil || p == 0 {
			return ServerTarget{}, &ValidationError{Field: "port", Reason: "must be 1-65535"}
		}
		port = uint16(p)
	}

	if len(host) < 1 || len(host) > 255 {
		return ServerTarget{}, &ValidationError{Field: "host", Reason: "must be 1-255 characters"}
	}
	if strings.ContainsAny(host, " /?[]") {
		return ServerTarget{}, &ValidationError{Field: "host", Reason: "contains forbidden characters"}
	}

	return ServerTarget{Host: host, Port: port, Edition: edition}, nil
}

// splitServer separates "host[:port]". IPv6 literals are accepted either
// bare ("::1", "[2001:db8::1]") or bracketed with a port ("[::1]:25565");
// a bare literal with a trailing port would be ambiguous and is rejected.
func splitServer(server string) (host, port string, err error) {
	switch strings.Count(server, ":") {
	case 0:
		return server, "", nil
	case 1:
		i := strings.IndexByte(server, ':')
		return server[:i], server[i+1:], nil
	}

	if host, port, err := net.SplitHostPort(server); err == nil {
		return host, port, nil
	}
	if net.ParseIP(server) != nil {
		return server, "", nil
	}
	if strings.HasPrefix(server, "[") && strings.HasSuffix(server, "]") {
		if inner := server[1 : len(server)-1]; net.ParseIP(inner) != nil {
			return inner, "", nil
		}
	}

	return "", "", &ValidationError{Field: "server", Reason: "malformed address, bracket IPv6 literals as [host]:port"}
}
