package protocol

import (
	"encoding/json"
)

// StatusConnected is the handshake acknowledgement status.
const StatusConnected = "connected"

// Handshake is the first client frame of a console session.
type Handshake struct {
	ServerID int64 `json:"server_id"`
}

// Command is one console command.
type Command struct {
	Command string `json:"command"`
}

// Reply is a server console frame. At most one of its meanings applies;
// see Kind.
type Reply struct {
	Status string `json:"status,omitempty"`
	Server string `json:"server,omitempty"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ReplyKind classifies a Reply.
type ReplyKind int

const (
	// ReplyIgnored carries none of the known fields.
	ReplyIgnored ReplyKind = iota
	// ReplyConnected acknowledges the handshake.
	ReplyConnected
	// ReplyOutput carries command output.
	ReplyOutput
	// ReplyError carries a server-side error.
	ReplyError
)

// String returns the kind name.
func (k ReplyKind) String() string {
	switch k {
	case ReplyConnected:
		return "connected"
	case ReplyOutput:
		return "output"
	case ReplyError:
		return "error"
	default:
		return "ignored"
	}
}

// Kind returns the reply's meaning. A handshake acknowledgement takes
// precedence over output, and output over error.
func (r Reply) Kind() ReplyKind {
	switch {
	case r.Status == StatusConnected:
		return ReplyConnected
	case r.Output != "":
		return ReplyOutput
	case r.Error != "":
		return ReplyError
	default:
		return ReplyIgnored
	}
}

// DecodeReply decodes a console frame. Anything that is not a JSON object
// with string fields returns ErrMalformed; callers show such frames raw.
func DecodeReply(data []byte) (Reply, error) {
	var r Reply
	if err := json.Unmarshal(data, &r); err != nil {
		return Reply{}, malformed("%v", err)
	}
	return r, nil
}

// EncodeHandshake encodes the console handshake for serverID.
func EncodeHandshake(serverID int64) []byte {
	return mustMarshal(Handshake{ServerID: serverID})
}

// EncodeCommand encodes one command.
func EncodeCommand(command string) []byte {
	return mustMarshal(Command{Command: command})
}

// EncodeReply encodes a server reply.
func EncodeReply(r Reply) []byte {
	return mustMarshal(r)
}

// mustMarshal is only used with flat structs of strings and integers,
// which cannot fail to encode.
func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
