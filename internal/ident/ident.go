// Package ident converts heterogeneous caller identifiers into canonical
// external ids. Registration and every rule or hierarchy operation accept
// anything Normalize recognizes, so applications can hand over raw strings,
// numeric keys, URL values, or their own Stringer types without converting
// first.
package ident

import (
	"encoding"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// Supremum is the reserved external id of the top node of every hierarchy.
const Supremum = "*"

// Normalize returns the canonical UTF-8 external id for v.
//
// Recognized kinds: strings, signed and unsigned integers, floats
// (shortest round-trip formatting, so distinct values stay distinct),
// encoding.TextMarshaler, and fmt.Stringer (which covers *url.URL and
// enum-like token types). Blank strings normalize to the empty sentinel;
// rejecting it is the registry's job, not ours. Anything else fails with
// ErrInvalidInput.
func Normalize(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return normalizeString(id), nil
	case int:
		return strconv.FormatInt(int64(id), 10), nil
	case int8:
		return strconv.FormatInt(int64(id), 10), nil
	case int16:
		return strconv.FormatInt(int64(id), 10), nil
	case int32:
		return strconv.FormatInt(int64(id), 10), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case uint:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint64:
		return strconv.FormatUint(id, 10), nil
	case float32:
		return strconv.FormatFloat(float64(id), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(id, 'g', -1, 64), nil
	case encoding.TextMarshaler:
		text, err := id.MarshalText()
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
		}
		return normalizeString(string(text)), nil
	case fmt.Stringer:
		return normalizeString(id.String()), nil
	case nil:
		return "", nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unsupported identifier type %T", v)
	}
}

// normalizeString maps whitespace-only input to the empty sentinel and leaves
// everything else untouched. Non-blank strings are never trimmed: " a " and
// "a" are distinct ids.
func normalizeString(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
