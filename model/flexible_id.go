package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidID = errors.New("invalid id")

// FlexibleID decodes ids that clients send as 3, "3", {"id":3} or {"id":"3"}.
// The zero value means "not provided".
type FlexibleID uint

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	switch data[0] {
	case '{':
		var wrapped struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidID, err)
		}
		if len(wrapped.ID) == 0 || wrapped.ID[0] == '{' {
			return fmt.Errorf("%w: object without scalar id", ErrInvalidID)
		}
		return f.UnmarshalJSON(wrapped.ID)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidID, err)
		}
		id, err := ParseFlexibleID(s)
		if err != nil {
			return err
		}
		*f = id
		return nil
	default:
		n, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidID, string(data))
		}
		*f = FlexibleID(n)
		return nil
	}
}

func (f FlexibleID) MarshalJSON() ([]byte, error) {
	if f == 0 {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatUint(uint64(f), 10)), nil
}

// Ptr returns nil for the zero value so it can feed optional filters directly
func (f FlexibleID) Ptr() *uint {
	if f == 0 {
		return nil
	}
	v := uint(f)
	return &v
}

// ParseFlexibleID parses a query-string id; empty input yields zero.
// A JSON-looking value such as {"id":3} is unwrapped as well.
func ParseFlexibleID(s string) (FlexibleID, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "undefined" {
		return 0, nil
	}
	if strings.HasPrefix(s, "{") {
		var f FlexibleID
		if err := f.UnmarshalJSON([]byte(s)); err != nil {
			return 0, err
		}
		return f, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return FlexibleID(n), nil
}
