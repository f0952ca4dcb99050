package rrdata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haukened/simpledns/internal/dns/domain"
)

// parseTXT accepts either one or more quoted strings (`"a" "b c"`) or, for
// hand-written zone files, bare segments separated by semicolons.
func parseTXT(data string) (domain.RData, error) {
	var segments []string
	if strings.HasPrefix(data, `"`) {
		var err error
		if segments, err = splitQuoted(data); err != nil {
			return nil, err
		}
	} else {
		for _, segment := range strings.Split(data, ";") {
			segment = strings.TrimSpace(segment)
			if segment != "" {
				segments = append(segments, segment)
			}
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("TXT record must contain at least one segment")
	}
	for _, s := range segments {
		if len(s) > 255 {
			return nil, fmt.Errorf("TXT segment too long: %d bytes", len(s))
		}
	}
	return domain.TXT{Strings: segments}, nil
}

// splitQuoted splits a run of Go-style quoted strings separated by whitespace.
func splitQuoted(data string) ([]string, error) {
	var out []string
	rest := data
	for rest != "" {
		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return nil, fmt.Errorf("malformed quoted string at %q", rest)
		}
		s, err := strconv.Unquote(quoted)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		rest = strings.TrimLeft(rest[len(quoted):], " \t")
	}
	return out, nil
}
