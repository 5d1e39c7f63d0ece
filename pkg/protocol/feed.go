package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jsmonitor/livesync/pkg/status"
)

// TypeStatusUpdate is the only feed message type.
const TypeStatusUpdate = "status_update"

// StatusUpdate is a decoded status delta for one server.
type StatusUpdate struct {
	ServerID int64
	Status   status.Status
}

type feedEnvelope struct {
	Type     string          `json:"type"`
	ServerID *int64          `json:"server_id"`
	Status   json.RawMessage `json:"status"`
}

// DecodeFeedMessage decodes and validates one feed frame.
func DecodeFeedMessage(data []byte) (StatusUpdate, error) {
	var env feedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StatusUpdate{}, malformed("%v", err)
	}
	if env.Type != TypeStatusUpdate {
		return StatusUpdate{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if env.ServerID == nil {
		return StatusUpdate{}, malformed("missing server_id")
	}

	raw := bytes.TrimSpace(env.Status)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return StatusUpdate{}, malformed("missing status")
	}
	if raw[0] != '{' {
		return StatusUpdate{}, malformed("status is not an object")
	}

	var st status.Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return StatusUpdate{}, malformed("status: %v", err)
	}
	return StatusUpdate{ServerID: *env.ServerID, Status: st}, nil
}

// EncodeStatusUpdate encodes a status_update frame.
func EncodeStatusUpdate(serverID int64, st status.Status) ([]byte, error) {
	return json.Marshal(struct {
		Type     string        `json:"type"`
		ServerID int64         `json:"server_id"`
		Status   status.Status `json:"status"`
	}{TypeStatusUpdate, serverID, st})
}
