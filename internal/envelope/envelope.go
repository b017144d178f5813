// Package envelope decodes the structured JSON payloads embedded in oracle
// output. Every call site declares an envelope Kind; the kind's schema names
// the fields that must be present, and Decode returns a tagged Result instead
// of failing loudly.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind names an envelope shape expected from the oracle.
type Kind string

const (
	KindTaskPlan    Kind = "task_plan"
	KindStory       Kind = "story"
	KindContentInit Kind = "content_init"
	KindContentStep Kind = "content_step"
	KindReply       Kind = "reply"
	KindRoomReply   Kind = "room_reply"
)

// schemas lists the gjson paths each kind requires.
var schemas = map[Kind][]string{
	KindTaskPlan:    {"taskQueueConstants"},
	KindStory:       {"thought", "storyProgress"},
	KindContentInit: {"thought", "contentPlan", "contentPlan.steps"},
	KindContentStep: {"thought"},
	KindReply:       {"text"},
	KindRoomReply:   {"text"},
}

var (
	// ErrNoJSON means no JSON object could be located in the text.
	ErrNoJSON = errors.New("no JSON object found")
	// ErrMissingField means a field required by the kind's schema is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownKind is returned for kinds without a schema.
	ErrUnknownKind = errors.New("unknown envelope kind")
)

// Result is the outcome of decoding one envelope.
type Result[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// OK reports whether decoding succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Required returns the required field paths for a kind.
func Required(kind Kind) []string {
	return append([]string(nil), schemas[kind]...)
}

// StripFences removes markdown code fences, keeping the first fenced block's
// body when one is present.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// drop the info string (e.g. "json") on the opening fence line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		info := strings.TrimSpace(body[:nl])
		if info == "" || !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// Extract locates the outermost JSON object in oracle output.
func Extract(text string) (string, error) {
	s := StripFences(text)
	open := strings.IndexByte(s, '{')
	closing := strings.LastIndexByte(s, '}')
	if open < 0 || closing <= open {
		return "", ErrNoJSON
	}
	obj := s[open : closing+1]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("%w: invalid JSON", ErrNoJSON)
	}
	return obj, nil
}

// Decode extracts, validates against the kind's schema, and unmarshals an
// envelope into T.
func Decode[T any](kind Kind, text string) Result[T] {
	res := Result[T]{Kind: kind}
	required, ok := schemas[kind]
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownKind, kind)
		return res
	}
	obj, err := Extract(text)
	if err != nil {
		res.Err = fmt.Errorf("decode %s envelope: %w", kind, err)
		return res
	}
	parsed := gjson.Parse(obj)
	for _, path := range required {
		v := parsed.Get(path)
		if !v.Exists() || v.Type == gjson.Null {
			res.Err = fmt.Errorf("decode %s envelope: %w: %s", kind, ErrMissingField, path)
			return res
		}
	}
	if err := json.Unmarshal([]byte(obj), &res.Value); err != nil {
		res.Err = fmt.Errorf("decode %s envelope: %w", kind, err)
	}
	return res
}

// Int accepts a JSON number or a numeric string; fractional values truncate
// and values beyond the int32 range saturate.
type Int int

// UnmarshalJSON implements json.Unmarshaler.
func (n *Int) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	switch {
	case math.IsNaN(f):
		return fmt.Errorf("parse integer %q: not a number", s)
	case f > math.MaxInt32:
		f = math.MaxInt32
	case f < math.MinInt32:
		f = math.MinInt32
	}
	*n = Int(f)
	return nil
}

// Bool accepts a JSON boolean or the strings "true" and "false".
type Bool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`))
	switch s {
	case "true":
		*b = true
	case "false", "null", "":
		*b = false
	default:
		return fmt.Errorf("parse boolean %q", s)
	}
	return nil
}
