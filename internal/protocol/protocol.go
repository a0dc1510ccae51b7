package protocol

import (
	"encoding/json"
	"fmt"
)

// Identifies a request or response on the daemon socket.
type Command string

const (
	CmdBuild        Command = "build"
	CmdRun          Command = "run"
	CmdImages       Command = "images"
	CmdImageImport  Command = "image-import"
	CmdImageDestroy Command = "image-destroy"
	CmdStatus       Command = "status"
	CmdShutdown     Command = "shutdown"
	CmdOK           Command = "ok"
	CmdError        Command = "error"
)

// Carries a command and its payload across the socket.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Serializes a command and payload into a JSON envelope.
//
// The result carries no trailing newline; the transport layer appends
// the message delimiter.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		env.Payload = data
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	return data, nil
}

// Parses a JSON envelope, returning the header and the raw payload for
// command-specific decoding.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	if env.Command == "" {
		return nil, nil, fmt.Errorf("%w: missing command", ErrProtocol)
	}

	return &env, env.Payload, nil
}

// Parses a raw payload into a concrete message type. An absent payload
// yields the zero value.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var msg T

	if len(payload) == 0 {
		return &msg, nil
	}

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	return &msg, nil
}
