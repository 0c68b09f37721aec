package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Dictionary maps symbolic event names to the integer codes carried on the
// trigger lines. Names encode modality by prefix, for example spoken_word
// against written_word. The dictionary is immutable once loaded.
type Dictionary struct {
	names  []string
	codes  map[string]int
	byCode map[int]string
}

// LoadDictionary reads a JSON object of event name to integer code and
// validates that codes are unique positive integers.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event dictionary: %w", err)
	}
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse event dictionary %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("event dictionary %s is empty", path)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	byCode := make(map[int]string, len(raw))
	for _, name := range names {
		code := raw[name]
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("event dictionary %s contains a blank event name", path)
		}
		if code <= 0 {
			return nil, fmt.Errorf("event %q: code must be a positive integer, got %d", name, code)
		}
		if other, dup := byCode[code]; dup {
			return nil, fmt.Errorf("events %q and %q share code %d", other, name, code)
		}
		byCode[code] = name
	}
	return &Dictionary{names: names, codes: raw, byCode: byCode}, nil
}

// Len returns the number of registered events.
func (d *Dictionary) Len() int {
	return len(d.names)
}

// Code looks up the trigger code for an event name.
func (d *Dictionary) Code(name string) (int, bool) {
	code, ok := d.codes[name]
	return code, ok
}

// NameForCode returns the event name registered for a trigger code.
func (d *Dictionary) NameForCode(code int) (string, bool) {
	name, ok := d.byCode[code]
	return name, ok
}

// Names returns every event name in ascending order.
func (d *Dictionary) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Mapping returns a copy of the full name-to-code table.
func (d *Dictionary) Mapping() map[string]int {
	out := make(map[string]int, len(d.codes))
	for name, code := range d.codes {
		out[name] = code
	}
	return out
}

// CodesForPrefix returns the codes of every event whose name starts with
// prefix, ascending. An empty prefix matches nothing.
func (d *Dictionary) CodesForPrefix(prefix string) []int {
	if prefix == "" {
		return nil
	}
	var codes []int
	for _, name := range d.names {
		if strings.HasPrefix(name, prefix) {
			codes = append(codes, d.codes[name])
		}
	}
	sort.Ints(codes)
	return codes
}

// CodesForNames resolves explicit event names to codes, failing on names
// the dictionary does not know.
func (d *Dictionary) CodesForNames(names []string) ([]int, error) {
	var codes []int
	for _, name := range names {
		code, ok := d.codes[name]
		if !ok {
			return nil, fmt.Errorf("unknown event name %q", name)
		}
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes, nil
}

// ModalityCodes resolves the event-code set for one modality. Explicit
// names win over prefix matching so projects with irregular naming can
// still drive the latency correction.
func (d *Dictionary) ModalityCodes(names []string, prefix string) ([]int, error) {
	if len(names) > 0 {
		return d.CodesForNames(names)
	}
	return d.CodesForPrefix(prefix), nil
}
