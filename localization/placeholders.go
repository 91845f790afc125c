package localization

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// templateArgs rewrites simple ICU arguments into template actions, so
// "Switch to {locale}" renders like "Switch to {{.Locale}}". The argument
// name is capitalised to follow the template data convention. Existing
// {{...}} actions and ICU forms with options, such as {count, plural, ...},
// are left as they are.
func templateArgs(message string) string {
	if !strings.Contains(message, "{") {
		return message
	}

	var b strings.Builder
	b.Grow(len(message) + 8)

	for i := 0; i < len(message); {
		rest := message[i:]

		if strings.HasPrefix(rest, "{{") {
			end := strings.Index(rest, "}}")
			if end < 0 {
				b.WriteString(rest)
				break
			}
			b.WriteString(rest[:end+2])
			i += end + 2
			continue
		}

		if rest[0] == '{' {
			if end := strings.IndexByte(rest, '}'); end > 1 && isArgName(rest[1:end]) {
				b.WriteString("{{.")
				b.WriteString(exportName(rest[1:end]))
				b.WriteString("}}")
				i += end + 1
				continue
			}
		}

		b.WriteByte(message[i])
		i++
	}
	return b.String()
}

func isArgName(name string) bool {
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return name != ""
}

func exportName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}
