package validators

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

// FlexInt64 accepts either a JSON integer or a string of digits.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if !isDigits(s) {
			return fmt.Errorf("%q is not a number", s)
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("%s is not an integer", data)
	}
	*f = FlexInt64(v)
	return nil
}

// FlexBool accepts a JSON boolean or the usual truthy/falsy strings ("yes", "off", "1").
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%s is not a boolean", data)
	}
	parsed, err := ParseBool(s)
	if err != nil {
		return err
	}
	*f = FlexBool(parsed)
	return nil
}

// ParseBool converts y/yes/t/true/on/1 and n/no/f/false/off/0 (case-insensitive).
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	case "n", "no", "f", "false", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid truth value %q", raw)
}

// DecodeList unpacks a field that holds either a JSON array or a string containing one.
func DecodeList(field string, raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "is required"})
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, invalidFormat(field, err)
		}
		raw = []byte(encoded)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, invalidFormat(field, err)
	}
	return list, nil
}

// ParseIDList splits "1,2,3" into ids; entries that are not plain digits are dropped.
func ParseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if !isDigits(part) {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func invalidFormat(field string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request format").
		WithDetails(map[string]string{field: "must be a JSON array"})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
