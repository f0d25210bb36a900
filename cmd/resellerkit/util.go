package main

import (
	"os"
	"strings"

	"github.com/benithors/resellerkit/internal/domain"
	"golang.org/x/term"
)

func readArgsAndStdin(args []string, stdin *os.File) ([]string, error) {
	var out []string

	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		out = append(out, a)
	}

	if term.IsTerminal(int(stdin.Fd())) {
		// Nothing piped in.
		return out, nil
	}

	lines, err := domain.ReadLines(stdin)
	if err != nil {
		return nil, err
	}
	out = append(out, lines...)
	return out, nil
}

// splitCommaList accepts "com,net org" style lists as a single argument.
func splitCommaList(vals []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, v := range vals {
		for _, p := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
