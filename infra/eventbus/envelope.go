package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amirasaad/checkoutflow/pkg/eventbus"
)

var (
	errMissingType = errors.New("missing event type in envelope")
	errUnknownType = errors.New("unknown event type")
)

// envelope is the wire format shared by the broker backed buses.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEnvelope(event eventbus.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal failed: %w", err)
	}
	env := envelope{Type: event.Type(), Payload: data}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope marshal failed: %w", err)
	}
	return envBytes, nil
}

// decodeEnvelope rebuilds the concrete event from raw using types.
func decodeEnvelope(raw []byte, types eventbus.TypeRegistry) (eventbus.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return nil, errMissingType
	}
	evt, ok := types.New(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownType, env.Type)
	}
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		return nil, fmt.Errorf("unmarshal payload for %s: %w", env.Type, err)
	}
	return evt, nil
}
