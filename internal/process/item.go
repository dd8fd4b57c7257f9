package process

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// ErrInvalidItem rejects a process item.
var ErrInvalidItem = errors.New("invalid process item")

// Item is a registered process with its settings. Feed settings hold feed ids.
type Item struct {
	ID      string            `json:"id"`
	Process string            `json:"process"`
	UserID  int               `json:"userid"`
	Params  map[string]string `json:"params"`
}

// DecodeItem parses a queued item.
func DecodeItem(data []byte) (Item, error) {
	var it Item
	if err := json.Unmarshal(data, &it); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if it.Process == "" {
		return Item{}, fmt.Errorf("%w: no process name", ErrInvalidItem)
	}
	return it, nil
}

// FeedID returns a feed setting as an id.
func (it Item) FeedID(key string) (int, error) {
	s, ok := it.Params[key]
	if !ok {
		return 0, &ValidationError{Key: key, Msg: "missing option " + key}
	}
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id < 1 {
		return 0, &ValidationError{Key: key, Msg: "feed id must be numeric and more than 0"}
	}
	return id, nil
}

// Value returns a value setting.
func (it Item) Value(key string) (float64, error) {
	s, ok := it.Params[key]
	if !ok {
		return 0, &ValidationError{Key: key, Msg: "missing option " + key}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &ValidationError{Key: key, Msg: "invalid value"}
	}
	return v, nil
}

// SameAs reports whether two items run the same process with the same
// settings for the same user. Ids are ignored.
func (it Item) SameAs(other Item) bool {
	return it.Process == other.Process && it.UserID == other.UserID && maps.Equal(it.Params, other.Params)
}

// DecodeParams reads a JSON object of settings. Numbers keep their literal
// form; null members are dropped.
func DecodeParams(data []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}

	params := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case string:
			params[k] = v
		case json.Number:
			params[k] = v.String()
		default:
			return nil, &ValidationError{Key: k, Msg: "invalid value"}
		}
	}
	return params, nil
}
