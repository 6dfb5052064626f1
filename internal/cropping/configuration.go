package cropping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// FreeRatio is the selectedRatio sentinel for crops without a fixed ratio.
const FreeRatio = "NaN"

// legacyFreeRatio is accepted as an alias of FreeRatio.
const legacyFreeRatio = "free"

// CropEntry is the stored crop of one (image, variant, aspect ratio).
type CropEntry struct {
	CropArea      Area   `json:"cropArea"`
	SelectedRatio string `json:"selectedRatio"`
	FocusArea     *Area  `json:"focusArea"`
}

// Configuration maps crop variant ids to crop entries for one image
// reference. Key order is preserved as stored; entries that were read are
// kept byte for byte so manual edits survive a rewrite untouched.
type Configuration struct {
	ids     []string
	entries map[string]json.RawMessage
}

// NewConfiguration returns an empty configuration.
func NewConfiguration() *Configuration {
	return &Configuration{entries: make(map[string]json.RawMessage)}
}

// DecodeConfiguration parses a stored crop blob. Empty, null and malformed
// blobs yield an empty configuration.
func DecodeConfiguration(data []byte) *Configuration {
	c := NewConfiguration()
	if err := c.UnmarshalJSON(data); err != nil {
		return NewConfiguration()
	}
	return c
}

// Len is the number of entries.
func (c *Configuration) Len() int { return len(c.ids) }

// IDs returns the entry ids in stored order.
func (c *Configuration) IDs() []string { return append([]string(nil), c.ids...) }

// Has reports whether an entry exists for id.
func (c *Configuration) Has(id string) bool {
	_, ok := c.entries[id]
	return ok
}

// Raw returns the stored JSON of an entry.
func (c *Configuration) Raw(id string) (json.RawMessage, bool) {
	raw, ok := c.entries[id]
	return raw, ok
}

// Entry decodes the entry stored under id.
func (c *Configuration) Entry(id string) (CropEntry, error) {
	raw, ok := c.entries[id]
	if !ok {
		return CropEntry{}, fmt.Errorf("no crop entry %q", id)
	}
	var e CropEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return CropEntry{}, fmt.Errorf("decode crop entry %q: %w", id, err)
	}
	return e, nil
}

// Set stores e under id, appending new ids at the end.
func (c *Configuration) Set(id string, e CropEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode crop entry %q: %w", id, err)
	}
	c.setRaw(id, raw)
	return nil
}

func (c *Configuration) setRaw(id string, raw json.RawMessage) {
	if _, ok := c.entries[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.entries[id] = raw
}

// Clone returns an independent copy.
func (c *Configuration) Clone() *Configuration {
	out := NewConfiguration()
	for _, id := range c.ids {
		out.setRaw(id, c.entries[id])
	}
	return out
}

// MarshalJSON encodes the entries as an object in stored order.
func (c *Configuration) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range c.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(c.entries[id])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping key order. An empty array, null or
// empty input decode to no entries.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	c.ids = nil
	c.entries = make(map[string]json.RawMessage)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("crop configuration: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("crop configuration: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		c.setRaw(id, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("crop configuration: unexpected data after object")
	}
	return nil
}
