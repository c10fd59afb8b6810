package pagination

import (
	"strings"
)

// Link is one entry of an RFC 8288 Link header.
type Link struct {
	URL    string
	Rels   []string
	Params map[string]string
}

// HasRel reports whether rel is one of the link's relation types.
func (l Link) HasRel(rel string) bool {
	for _, r := range l.Rels {
		if strings.EqualFold(r, rel) {
			return true
		}
	}
	return false
}

// ParseLinkHeader parses a Link header value. Entries are separated by commas
// outside of <...> and quoted strings; malformed entries are skipped.
func ParseLinkHeader(value string) []Link {
	var links []Link
	for _, entry := range splitOutside(value, ',') {
		entry = strings.TrimSpace(entry)
		if !strings.HasPrefix(entry, "<") {
			continue
		}
		end := strings.Index(entry, ">")
		if end < 0 {
			continue
		}

		link := Link{
			URL:    strings.TrimSpace(entry[1:end]),
			Params: map[string]string{},
		}
		for _, param := range splitOutside(entry[end+1:], ';') {
			param = strings.TrimSpace(param)
			if param == "" {
				continue
			}
			name, val, _ := strings.Cut(param, "=")
			name = strings.ToLower(strings.TrimSpace(name))
			val = strings.Trim(strings.TrimSpace(val), `"`)
			link.Params[name] = val
			if name == "rel" {
				link.Rels = append(link.Rels, strings.Fields(strings.ToLower(val))...)
			}
		}
		links = append(links, link)
	}
	return links
}

// NextLink returns the URL of the first rel="next" entry.
func NextLink(values ...string) (string, bool) {
	for _, v := range values {
		for _, l := range ParseLinkHeader(v) {
			if l.HasRel("next") && l.URL != "" {
				return l.URL, true
			}
		}
	}
	return "", false
}

// splitOutside splits s on sep, ignoring separators inside <...> or "...".
func splitOutside(s string, sep byte) []string {
	var (
		parts   []string
		start   int
		inAngle bool
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' && !inAngle:
			inQuote = !inQuote
		case c == '<' && !inQuote:
			inAngle = true
		case c == '>' && !inQuote:
			inAngle = false
		case c == sep && !inAngle && !inQuote:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
