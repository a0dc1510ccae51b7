package protocol

import (
	"errors"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(CmdRun, &RunRequest{Image: "app:latest", Keep: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Command != CmdRun {
		t.Errorf("command = %q, want %q", env.Command, CmdRun)
	}

	req, err := DecodePayload[RunRequest](payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Image != "app:latest" {
		t.Errorf("image = %q, want app:latest", req.Image)
	}
	if !req.Keep {
		t.Error("keep = false, want true")
	}
}

func TestEncodeWithoutPayload(t *testing.T) {
	data, err := Encode(CmdShutdown, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Command != CmdShutdown {
		t.Errorf("command = %q, want %q", env.Command, CmdShutdown)
	}
	if len(payload) != 0 {
		t.Errorf("payload = %q, want empty", payload)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "malformed json", in: "{not json"},
		{name: "missing command", in: `{"payload":{}}`},
		{name: "empty message", in: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.in))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("error = %v, want %v", err, ErrProtocol)
			}
		})
	}
}

func TestDecodePayloadEmpty(t *testing.T) {
	req, err := DecodePayload[ImageDestroyRequest](nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Tag != "" {
		t.Errorf("tag = %q, want empty", req.Tag)
	}
}

func TestDecodePayloadRejectsMalformed(t *testing.T) {
	_, err := DecodePayload[RunRequest]([]byte(`{"image":42}`))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("error = %v, want %v", err, ErrProtocol)
	}
}
