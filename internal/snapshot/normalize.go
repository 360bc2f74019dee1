// Package snapshot normalizes database dumps into byte-comparable
// artifacts. Two dumps taken under identical logical data must be
// byte-identical regardless of timestamps, generator metadata or
// formatting drift, so that any diff between a baseline and a target
// snapshot is attributable to the migration alone.
package snapshot

import (
	"bytes"
	"fmt"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// BannerLines is the fixed-size non-deterministic header the dump tool
// prepends: a generator banner and a timestamp line.
const BannerLines = 2

// StripBanner removes the dump tool's header lines. Input shorter than
// the banner yields empty output.
func StripBanner(raw []byte) []byte {
	rest := raw
	for i := 0; i < BannerLines; i++ {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			return nil
		}
		rest = rest[idx+1:]
	}
	return rest
}

// Canonicalize re-encodes a YAML document with fixed formatting. Document
// order is preserved (node-level round trip, no map re-sorting), so the
// dump tool's deterministic record ordering survives.
func Canonicalize(raw []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse dump YAML: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("re-encode dump YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("re-encode dump YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize turns a raw dump into its canonical byte form: banner
// stripped, YAML re-encoded with fixed formatting, text NFC-normalized.
// Deterministic: equal logical content always yields equal bytes.
func Normalize(raw []byte) ([]byte, error) {
	body := StripBanner(raw)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("dump is empty after stripping %d banner lines", BannerLines)
	}

	canonical, err := Canonicalize(body)
	if err != nil {
		return nil, err
	}

	// Unicode normalization keeps dumps byte-comparable across
	// environments that emit composed vs decomposed forms.
	return norm.NFC.Bytes(canonical), nil
}
