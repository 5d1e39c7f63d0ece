package status

import (
	"encoding/json"
	"net"
	"strconv"
	"time"
)

// Status is the live state of one game server. It is always replaced as a
// whole, never patched field by field.
type Status struct {
	Online     bool      `json:"online"`
	PlayersNow int       `json:"players_now"`
	PlayersMax int       `json:"players_max"`
	Map        string    `json:"map"`
	PingMS     int       `json:"ping_ms"`
	LastUpdate time.Time `json:"last_update"`
}

// statusWire accepts the canonical names and the legacy backend aliases
// online_status and current_map. Canonical names win when both are set.
type statusWire struct {
	Online       *bool     `json:"online"`
	OnlineStatus *bool     `json:"online_status"`
	PlayersNow   int       `json:"players_now"`
	PlayersMax   int       `json:"players_max"`
	Map          *string   `json:"map"`
	CurrentMap   *string   `json:"current_map"`
	PingMS       int       `json:"ping_ms"`
	LastUpdate   time.Time `json:"last_update"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var w statusWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Status{
		PlayersNow: w.PlayersNow,
		PlayersMax: w.PlayersMax,
		PingMS:     w.PingMS,
		LastUpdate: w.LastUpdate,
	}
	switch {
	case w.Online != nil:
		out.Online = *w.Online
	case w.OnlineStatus != nil:
		out.Online = *w.OnlineStatus
	}
	switch {
	case w.Map != nil:
		out.Map = *w.Map
	case w.CurrentMap != nil:
		out.Map = *w.CurrentMap
	}
	*s = out
	return nil
}

// Record is one monitored server. Static attributes come from the REST
// listing; Status is nil until the first status is known.
type Record struct {
	ID          int64   `json:"id"`
	UUID        string  `json:"uuid,omitempty"`
	Title       string  `json:"title"`
	IP          string  `json:"ip,omitempty"`
	DisplayIP   string  `json:"display_ip,omitempty"`
	Port        int     `json:"port,omitempty"`
	GameType    string  `json:"game_type,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Address returns the display address, falling back to ip:port.
func (r Record) Address() string {
	if r.DisplayIP != "" {
		return r.DisplayIP
	}
	if r.IP == "" {
		return ""
	}
	if r.Port == 0 {
		return r.IP
	}
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}
