package incident

import (
	"encoding/json"
	"fmt"
)

// EncodeEventPayload marshals a timeline event's typed payload for
// storage, mirroring the teacher's jobs.EncodePayload switch-by-kind
// pattern since Go has no closed sum type for Event.Payload.
func EncodeEventPayload(e Event) ([]byte, error) {
	if e.Payload == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event payload: %w", e.Type, err)
	}
	return b, nil
}

// DecodeEventPayload unmarshals a stored timeline event's payload into
// its typed shape based on the event's type.
func DecodeEventPayload(eventType EventType, raw []byte) (any, error) {
	if len(raw) == 0 || string(raw) == "{}" {
		return nil, nil
	}

	switch eventType {
	case EventNotification:
		var p NotificationResultPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode notification event payload: %w", err)
		}
		return p, nil
	case EventAcknowledged:
		var p AcknowledgedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode acknowledged event payload: %w", err)
		}
		return p, nil
	case EventMonitorPinged:
		var p MonitorPingedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode monitor_pinged event payload: %w", err)
		}
		return p, nil
	case EventCreation, EventResolution, EventConfirmation, EventComment:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

// EncodeNotificationPayload marshals a queue row's rendering payload.
func EncodeNotificationPayload(p NotificationPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode notification payload: %w", err)
	}
	return b, nil
}

func DecodeNotificationPayload(raw []byte) (NotificationPayload, error) {
	var p NotificationPayload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return NotificationPayload{}, fmt.Errorf("decode notification payload: %w", err)
	}
	return p, nil
}
