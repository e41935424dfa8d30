package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a frame carries a tag the protocol does
// not define. The caller logs and drops the frame; the session stays open.
var ErrUnknownKind = errors.New("unknown message kind")

// ErrUntagged is returned when a frame has no "type" field and is not a
// server error object.
var ErrUntagged = errors.New("frame has no type tag")

// tagged is the encode-side envelope: the tag followed by the flattened
// message fields, matching the server's internally tagged representation.
type tagged struct {
	Type Kind `json:"type"`
}

// Encode serializes a message to a wire frame.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	head, err := json.Marshal(tagged{Type: m.Kind()})
	if err != nil {
		return nil, fmt.Errorf("encode %s tag: %w", m.Kind(), err)
	}
	// Splice the tag object and the field object into one. Both are
	// guaranteed non-empty JSON objects.
	if string(body) == "{}" {
		return head, nil
	}
	frame := make([]byte, 0, len(head)+len(body))
	frame = append(frame, head[:len(head)-1]...)
	frame = append(frame, ',')
	frame = append(frame, body[1:]...)
	return frame, nil
}

// Decode parses a wire frame into its concrete message type. Matching is
// exhaustive over the defined kinds; anything else fails with
// ErrUnknownKind or ErrUntagged so the caller can drop it.
func Decode(data []byte) (Message, error) {
	var probe tagged
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch probe.Type {
	case KindConnect:
		var m Connect
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		return m, nil
	case KindUpdate:
		var m Update
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		return m, nil
	case KindNewPartyMember:
		var m NewPartyMember
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		return m, nil
	case KindDisconnect:
		var m Disconnect
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		return m, nil
	case KindPing:
		var m Ping
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		return m, nil
	case KindPong:
		var m Pong
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		return m, nil
	case KindStartRace:
		return StartRace{}, nil
	case KindRaceStarted:
		return RaceStarted{}, nil
	case "":
		var se ServerError
		if err := json.Unmarshal(data, &se); err == nil && se.Message != "" {
			return se, nil
		}
		return nil, ErrUntagged
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, probe.Type)
	}
}
