package namespace

import (
	"bytes"
	"encoding/json"
)

// OptionalID tracks presence and value for a nullable reference in PATCH
// style requests:
//   - Present=false: leave the reference unchanged
//   - Present=true, Value=nil: clear it (move to partition level)
//   - Present=true, Value=&id: point it at id
type OptionalID struct {
	Present bool
	Value   *string
}

// SetID returns an OptionalID pointing at id
func SetID(id string) OptionalID {
	return OptionalID{Present: true, Value: &id}
}

// ClearID returns an OptionalID that clears the reference
func ClearID() OptionalID {
	return OptionalID{Present: true}
}

// UnmarshalJSON implements json.Unmarshaler.
// When this method is called, the field was present in the JSON.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		o.Value = nil
		return nil
	}
	o.Value = &s
	return nil
}
