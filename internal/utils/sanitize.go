package utils

// DefaultPackName is used when a label sanitizes down to nothing.
const DefaultPackName = "generated-pack"

const maxPackNameLen = 60

// SanitizePackName converts a user-supplied label into a safe archive root
// name: only [A-Za-z0-9-_] survives, everything else becomes '-', and the
// result is capped at 60 characters. Never returns an empty string. The
// whitelist guarantees the name carries no path separators or traversal
// sequences, since it doubles as the suggested download filename.
func SanitizePackName(label string) string {
	out := make([]byte, 0, len(label))
	for i := 0; i < len(label) && len(out) < maxPackNameLen; i++ {
		ch := label[i]
		switch {
		case ch >= 'a' && ch <= 'z',
			ch >= 'A' && ch <= 'Z',
			ch >= '0' && ch <= '9',
			ch == '-', ch == '_':
			out = append(out, ch)
		default:
			out = append(out, '-')
		}
	}

	if allDashes(out) && !hasSafeChar(label) {
		// All-whitespace or all-disallowed labels collapse to dashes;
		// treat those the same as an absent label.
		return DefaultPackName
	}
	if len(out) == 0 {
		return DefaultPackName
	}
	return string(out)
}

func allDashes(b []byte) bool {
	for _, ch := range b {
		if ch != '-' {
			return false
		}
	}
	return true
}

func hasSafeChar(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') || ch == '-' || ch == '_' {
			return true
		}
	}
	return false
}
