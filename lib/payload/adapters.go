package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Text
// --------------------------------------------------------------------------

// Text is a payload whose serialized form is the string itself
type Text string

func (t *Text) Serialize() string {
	return string(*t)
}

func (t *Text) Deserialize(data string) error {
	*t = Text(data)
	return nil
}

// NewText creates a text payload
func NewText(s string) *Text {
	t := Text(s)
	return &t
}

// --------------------------------------------------------------------------
// JSON
// --------------------------------------------------------------------------

// JSON wraps a value that is serialized with encoding/json
type JSON[T any] struct {
	Value T
}

// NewJSON wraps a value into a json payload
func NewJSON[T any](v T) *JSON[T] {
	return &JSON[T]{Value: v}
}

// Serialize encodes the value, values that can't be encoded (e.g. channels)
// serialize to an empty string and fail on Deserialize.
func (j *JSON[T]) Serialize() string {
	b, err := json.Marshal(j.Value)
	if err != nil {
		return ""
	}
	return string(b)
}

func (j *JSON[T]) Deserialize(data string) error {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return fmt.Errorf("decode json payload: %w", err)
	}
	j.Value = v
	return nil
}

// --------------------------------------------------------------------------
// Gob
// --------------------------------------------------------------------------

// Gob wraps a value that is serialized with encoding/gob and stored as base64 text
type Gob[T any] struct {
	Value T
}

// NewGob wraps a value into a gob payload
func NewGob[T any](v T) *Gob[T] {
	return &Gob[T]{Value: v}
}

func (g *Gob[T]) Serialize() string {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g.Value); err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func (g *Gob[T]) Deserialize(data string) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode gob payload: %w", err)
	}
	var v T
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&v); err != nil {
		return fmt.Errorf("decode gob payload: %w", err)
	}
	g.Value = v
	return nil
}
