package devices

import (
	"fmt"
	"strings"
)

// Kind is the media kind of a device. The numeric values match the
// permission type values used on the wire.
type Kind uint8

const (
	KindMicrophone Kind = 1
	KindCamera     Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindCamera:
		return "camera"
	case KindMicrophone:
		return "microphone"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindCamera || k == KindMicrophone
}

// ParseKind parses "camera" or "microphone" (also "audio" and "mic").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "camera", "video":
		return KindCamera, nil
	case "microphone", "mic", "audio":
		return KindMicrophone, nil
	default:
		return 0, NewError(ErrCodeInvalidArgument, fmt.Sprintf("unknown device kind %q", s), nil)
	}
}
