package config

import (
	"fmt"
	"strconv"
)

// MissingKeyError reports a key that is required for correct operation but
// absent from every tier. Misconfiguration surfaces immediately rather than
// silently defaulting.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("config: required key %s is not set in any tier", e.Key)
}

// InvalidValueError reports a key whose value cannot be converted to the
// requested type.
type InvalidValueError struct {
	Key   string
	Value string
	Want  string
	Err   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("config: key %s has invalid %s value %q", e.Key, e.Want, e.Value)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// Effective is the resolved key/value mapping produced by merging the three
// tiers. It is a value snapshot: mutations to the backing files after
// LoadTiers are not reflected until the next load.
type Effective map[string]string

// Has reports whether key resolved to any value.
func (e Effective) Has(key string) bool {
	_, ok := e[key]
	return ok
}

// String returns the resolved string value for key.
func (e Effective) String(key string) (string, error) {
	v, ok := e[key]
	if !ok {
		return "", &MissingKeyError{Key: key}
	}
	return v, nil
}

// StringOr returns the resolved value for key, or fallback when absent.
// Only appropriate for keys that are genuinely optional.
func (e Effective) StringOr(key, fallback string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return fallback
}

// Int returns the resolved integer value for key.
func (e Effective) Int(key string) (int, error) {
	v, err := e.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &InvalidValueError{Key: key, Value: v, Want: "integer", Err: err}
	}
	return n, nil
}

// Float returns the resolved float value for key.
func (e Effective) Float(key string) (float64, error) {
	v, err := e.String(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &InvalidValueError{Key: key, Value: v, Want: "float", Err: err}
	}
	return f, nil
}

// WordList returns the resolved value for key tokenized as shell words.
// A missing key yields an empty list, not an error: flag lists are optional.
func (e Effective) WordList(key string) ([]string, error) {
	v, ok := e[key]
	if !ok {
		return nil, nil
	}
	words, err := splitWords(v)
	if err != nil {
		return nil, &InvalidValueError{Key: key, Value: v, Want: "word list", Err: err}
	}
	return words, nil
}
