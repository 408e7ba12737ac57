// Package validate turns raw request payloads into typed buyer field sets.
//
// Every violated field is reported, not just the first. Unknown keys are ignored,
// absent keys stay absent and explicit nulls are violations.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
)

// Field limits.
const (
	MinNameLen  = 2
	MinPhoneLen = 10
	MaxPhoneLen = 15
	MaxNotesLen = 1000
	MinPassword = 6
)

// TokenField carries the concurrency token on updates. It is never persisted.
const TokenField = "updatedAt"

var createRequired = []string{"fullName", "phone", "city", "propertyType", "purpose", "timeline", "source"}

// Decode reads a JSON object, keeping numbers as json.Number.
func Decode(r io.Reader) (map[string]any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Invalid("body", "unreadable: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, errs.Invalid("body", "expected a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errs.Invalid("body", "unexpected data after the JSON object")
	}
	return raw, nil
}

// Update validates a partial update and extracts the mandatory concurrency token.
func Update(raw map[string]any) (model.BuyerPatch, time.Time, error) {
	ve := &errs.ValidationError{}
	patch := parseFields(raw, ve)

	var token time.Time
	switch v, ok := raw[TokenField]; {
	case !ok || v == nil:
		ve.Add(TokenField, "required")
	default:
		s, isStr := v.(string)
		if !isStr {
			ve.Add(TokenField, "invalid type, expected string but got %s", typeName(v))
			break
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			ve.Add(TokenField, "must be an RFC 3339 timestamp")
			break
		}
		token = t
	}
	if err := ve.OrNil(); err != nil {
		return model.BuyerPatch{}, time.Time{}, err
	}
	return patch, token, nil
}

// Create validates a full record payload. Required fields must be present.
func Create(raw map[string]any) (model.BuyerPatch, error) {
	ve := &errs.ValidationError{}
	for _, name := range createRequired {
		if _, ok := raw[name]; !ok {
			ve.Add(name, "required")
		}
	}
	patch := parseFields(raw, ve)
	if err := ve.OrNil(); err != nil {
		return model.BuyerPatch{}, err
	}
	return patch, nil
}

// Credentials checks registration input.
func Credentials(email, password string) error {
	ve := &errs.ValidationError{}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		ve.Add("email", "invalid email")
	}
	if utf8.RuneCountInString(password) < MinPassword {
		ve.Add("password", "too small, must have at least %d characters", MinPassword)
	}
	return ve.OrNil()
}

// Filter validates list query parameters and returns the filter and 1-based page.
func Filter(q url.Values) (model.BuyerFilter, int, error) {
	ve := &errs.ValidationError{}
	f := model.BuyerFilter{Search: strings.TrimSpace(q.Get("search"))}
	if v := q.Get("city"); v != "" {
		f.City = enumValue(ve, "city", v, model.Cities)
	}
	if v := q.Get("propertyType"); v != "" {
		f.PropertyType = enumValue(ve, "propertyType", v, model.PropertyTypes)
	}
	if v := q.Get("status"); v != "" {
		f.Status = enumValue(ve, "status", v, model.Statuses)
	}
	if v := q.Get("timeline"); v != "" {
		f.Timeline = enumValue(ve, "timeline", v, model.Timelines)
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	if err := ve.OrNil(); err != nil {
		return model.BuyerFilter{}, 0, err
	}
	return f, page, nil
}

func parseFields(raw map[string]any, ve *errs.ValidationError) model.BuyerPatch {
	var p model.BuyerPatch
	p.FullName = stringField(raw, ve, "fullName", func(s string) string {
		if utf8.RuneCountInString(s) < MinNameLen {
			return fmt.Sprintf("too small, must have at least %d characters", MinNameLen)
		}
		return ""
	})
	p.Email = stringField(raw, ve, "email", func(s string) string {
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s {
			return "invalid email"
		}
		return ""
	})
	p.Phone = stringField(raw, ve, "phone", func(s string) string {
		n := utf8.RuneCountInString(s)
		if n < MinPhoneLen {
			return fmt.Sprintf("too small, must have at least %d characters", MinPhoneLen)
		}
		if n > MaxPhoneLen {
			return fmt.Sprintf("too large, must have at most %d characters", MaxPhoneLen)
		}
		return ""
	})
	p.Notes = stringField(raw, ve, "notes", func(s string) string {
		if utf8.RuneCountInString(s) > MaxNotesLen {
			return fmt.Sprintf("too large, must have at most %d characters", MaxNotesLen)
		}
		return ""
	})
	p.City = enumField(raw, ve, "city", model.Cities)
	p.PropertyType = enumField(raw, ve, "propertyType", model.PropertyTypes)
	p.BHK = enumField(raw, ve, "bhk", model.BHKs)
	p.Purpose = enumField(raw, ve, "purpose", model.Purposes)
	p.Timeline = enumField(raw, ve, "timeline", model.Timelines)
	p.Source = enumField(raw, ve, "source", model.Sources)
	p.Status = enumField(raw, ve, "status", model.Statuses)
	p.BudgetMin = budgetField(raw, ve, "budgetMin")
	p.BudgetMax = budgetField(raw, ve, "budgetMax")
	p.Tags = tagsField(raw, ve, "tags")
	return p
}

func stringField(raw map[string]any, ve *errs.ValidationError, name string, check func(string) string) *string {
	v, ok := raw[name]
	if !ok {
		return nil
	}
	s, isStr := v.(string)
	if !isStr {
		ve.Add(name, "invalid type, expected string but got %s", typeName(v))
		return nil
	}
	if msg := check(s); msg != "" {
		ve.Add(name, "%s", msg)
		return nil
	}
	return &s
}

func enumField[E model.Enum](raw map[string]any, ve *errs.ValidationError, name string, set []E) *E {
	v, ok := raw[name]
	if !ok {
		return nil
	}
	s, isStr := v.(string)
	if !isStr {
		ve.Add(name, "invalid type, expected string but got %s", typeName(v))
		return nil
	}
	before := len(ve.Violations)
	e := enumValue(ve, name, s, set)
	if len(ve.Violations) != before {
		return nil
	}
	return &e
}

func enumValue[E model.Enum](ve *errs.ValidationError, name, s string, set []E) E {
	e, ok := model.ParseEnum(set, s)
	if !ok {
		opts := make([]string, len(set))
		for i, o := range set {
			opts[i] = string(o)
		}
		ve.Add(name, "invalid value %q, expected one of %s", s, strings.Join(opts, ", "))
	}
	return e
}

func budgetField(raw map[string]any, ve *errs.ValidationError, name string) *int64 {
	v, ok := raw[name]
	if !ok {
		return nil
	}
	n, err := wholeNumber(v)
	if err != nil {
		ve.Add(name, "%v", err)
		return nil
	}
	if n < 0 {
		ve.Add(name, "must be greater than or equal to 0")
		return nil
	}
	return &n
}

var (
	errNotWhole   = errors.New("must be a whole number")
	errOutOfRange = errors.New("out of range, must fit in a 64-bit integer")
)

// wholeNumber parses integers exactly. Floats are consulted only to tell
// fractions (1.5) and exponent forms (1e6) from out-of-range values.
func wholeNumber(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(string(n), 64)
		switch {
		case errors.Is(err, strconv.ErrRange):
			return 0, errOutOfRange
		case err != nil:
			return 0, fmt.Errorf("invalid number %q", string(n))
		}
		return fromFloat(f)
	case float64:
		return fromFloat(n)
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("invalid type, expected number but got %s", typeName(v))
	}
}

func fromFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, errOutOfRange
	}
	if f != math.Trunc(f) {
		return 0, errNotWhole
	}
	return int64(f), nil
}

func tagsField(raw map[string]any, ve *errs.ValidationError, name string) *[]string {
	v, ok := raw[name]
	if !ok {
		return nil
	}
	var out []string
	switch list := v.(type) {
	case []string:
		out = append([]string{}, list...)
	case []any:
		out = make([]string, 0, len(list))
		for i, item := range list {
			s, isStr := item.(string)
			if !isStr {
				ve.Add(fmt.Sprintf("%s[%d]", name, i), "invalid type, expected string but got %s", typeName(item))
				return nil
			}
			out = append(out, s)
		}
	default:
		ve.Add(name, "invalid type, expected array but got %s", typeName(v))
		return nil
	}
	return &out
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
