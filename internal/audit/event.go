package audit

import (
	"encoding/json"
	"time"
)

// ISO8601Format is the time format used for audit event timestamps.
const ISO8601Format = time.RFC3339

// eventJSON is the on-disk form. Optional fields are omitted when empty.
type eventJSON struct {
	Timestamp   string            `json:"timestamp"`
	OperationID string            `json:"operationId,omitempty"`
	EventType   EventType         `json:"eventType"`
	Status      OperationStatus   `json:"status"`
	Source      string            `json:"source,omitempty"`
	Destination string            `json:"destination,omitempty"`
	IDs         []int64           `json:"ids,omitempty"`
	Requested   int               `json:"requested,omitempty"`
	Confirmed   int               `json:"confirmed,omitempty"`
	Error       *ErrorDetails     `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON writes the timestamp in ISO 8601 UTC.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Timestamp:   e.Timestamp.UTC().Format(ISO8601Format),
		OperationID: e.OperationID,
		EventType:   e.EventType,
		Status:      e.Status,
		Source:      e.Source,
		Destination: e.Destination,
		IDs:         e.IDs,
		Requested:   e.Requested,
		Confirmed:   e.Confirmed,
		Error:       e.Error,
		Metadata:    e.Metadata,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var ej eventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}

	t, err := time.Parse(ISO8601Format, ej.Timestamp)
	if err != nil {
		return err
	}

	*e = Event{
		Timestamp:   t,
		OperationID: ej.OperationID,
		EventType:   ej.EventType,
		Status:      ej.Status,
		Source:      ej.Source,
		Destination: ej.Destination,
		IDs:         ej.IDs,
		Requested:   ej.Requested,
		Confirmed:   ej.Confirmed,
		Error:       ej.Error,
		Metadata:    ej.Metadata,
	}
	return nil
}

// UnmarshalJSONLine unmarshals a JSON line into an Event.
func UnmarshalJSONLine(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
