package store

import (
	"database/sql"
	"encoding/json"
)

// decodeJSON is the best-effort read path for stored structured values.
// A NULL column or malformed text decodes to nil; a corrupt field must not
// make the surrounding row unreadable.
func decodeJSON(raw sql.NullString) any {
	if !raw.Valid {
		return nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw.String), &value); err != nil {
		return nil
	}
	return value
}

// encodeJSON maps nil to a stored NULL and anything else to its JSON text.
func encodeJSON(value any) (*string, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	text := string(data)
	return &text, nil
}

// encodeJSONNonNull is for fields that always store text, even "null".
func encodeJSONNonNull(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
