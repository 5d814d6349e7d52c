package ensemble

import (
	"fmt"
	"strings"
)

// ValidatePath checks a namespace path against the coordination-service
// naming rules:
//   - must start with '/'
//   - must not end with '/' (the root "/" scopes nothing and is rejected)
//   - must not contain empty, "." or ".." segments
//   - must not contain NUL, control characters or non-characters
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	if path[0] != '/' {
		return fmt.Errorf("%w: %q must start with '/'", ErrInvalidPath, path)
	}
	if strings.HasSuffix(path, "/") {
		return fmt.Errorf("%w: %q must not end with '/'", ErrInvalidPath, path)
	}

	for i, seg := range strings.Split(path[1:], "/") {
		switch seg {
		case "":
			return fmt.Errorf("%w: empty segment %d in %q", ErrInvalidPath, i, path)
		case ".", "..":
			return fmt.Errorf("%w: relative segment %q in %q", ErrInvalidPath, seg, path)
		}
	}

	for i, r := range path {
		if invalidRune(r) {
			return fmt.Errorf("%w: invalid character %U at %d in %q", ErrInvalidPath, r, i, path)
		}
	}
	return nil
}

func invalidRune(r rune) bool {
	switch {
	case r == 0:
		return true
	case r > 0x00 && r <= 0x1f:
		return true
	case r >= 0x7f && r <= 0x9f:
		return true
	case r >= 0xd800 && r <= 0xf8ff:
		return true
	case r >= 0xfff0 && r <= 0xffff:
		return true
	}
	return false
}
