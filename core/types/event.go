package types

// Event is the flattened form of a committed vault or strategy state change.
// Attribute values are pre-rendered strings so the record can be logged,
// archived or served over HTTP without further type information.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attribute returns the named attribute or an empty string.
func (e *Event) Attribute(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type, Attributes: make(map[string]string, len(e.Attributes))}
	for k, v := range e.Attributes {
		clone.Attributes[k] = v
	}
	return clone
}
