// Package tldkey maps canonical TLDs onto the key spellings the registrar uses
// in its price tables.
//
// The registrar is inconsistent: most products are keyed "dotcom" or "com",
// some ".com" or "COM", and a few ccTLD products carry a vendor prefix
// ("centralniczaco.za"). Resolution tries each spelling in a fixed order and
// returns the first one present.
package tldkey

import "strings"

// Spelling turns a canonical TLD into one candidate registrar key.
type Spelling func(tld string) string

// Spellings is the lookup order. Bare comes first because it is the common
// case; the prefixed forms only exist for a handful of products.
var Spellings = []Spelling{
	Bare,
	Dotted,
	Upper,
	Lower,
	DotWord,
	CentralNicZA,
}

func Bare(tld string) string         { return tld }
func Dotted(tld string) string       { return "." + tld }
func Upper(tld string) string        { return strings.ToUpper(tld) }
func Lower(tld string) string        { return strings.ToLower(tld) }
func DotWord(tld string) string      { return "dot" + tld }
func CentralNicZA(tld string) string { return "centralnicza" + tld }

// Canonical lowercases s and strips surrounding whitespace and leading dots.
func Canonical(s string) string {
	return strings.TrimLeft(strings.ToLower(strings.TrimSpace(s)), ".")
}

// Candidates returns the distinct keys to try for tld, in priority order.
func Candidates(tld string) []string {
	out := make([]string, 0, len(Spellings))
	seen := make(map[string]struct{}, len(Spellings))
	for _, spell := range Spellings {
		k := spell(tld)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Resolve returns the first entry of table whose key is a spelling of tld.
// ok is false when no spelling is present; that means the TLD is unpriced,
// not that something failed.
func Resolve[V any](table map[string]V, tld string) (key string, v V, ok bool) {
	if tld == "" || len(table) == 0 {
		return "", v, false
	}
	for _, k := range Candidates(tld) {
		if found, exists := table[k]; exists {
			return k, found, true
		}
	}
	return "", v, false
}
