package domain

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"golang.org/x/net/idna"
)

// Normalize turns an order line's domain into the lowercase ASCII form the
// registrar keys its availability responses by. URLs and a trailing dot are
// tolerated; anything that is not a registrable name is an error.
func Normalize(input string) (string, error) {
	s := strings.TrimSpace(input)
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Hostname()
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if s == "" {
		return "", fmt.Errorf("empty domain")
	}

	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return "", fmt.Errorf("idna: %w", err)
	}
	if !strings.Contains(ascii, ".") {
		return "", fmt.Errorf("domain must contain a dot: %q", input)
	}
	if !validASCII(ascii) {
		return "", fmt.Errorf("invalid domain: %q", input)
	}
	return ascii, nil
}

// Split separates the registrable label from its TLD at the first dot, so
// "example.co.in" yields ("example", "co.in"). The registrar's availability
// endpoint takes the two halves as separate parameters.
func Split(name string) (label, tld string, err error) {
	i := strings.IndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", fmt.Errorf("cannot split %q into label and tld", name)
	}
	return name[:i], name[i+1:], nil
}

func validASCII(s string) bool {
	if len(s) > 253 || strings.HasPrefix(s, ".") {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if len(label) < 1 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
				return false
			}
		}
	}
	return true
}

// ReadLines returns the non-blank, trimmed lines of r.
func ReadLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	var out []string
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func NewTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
