package devices

import (
	"fmt"
	"sort"
	"strings"
)

// Flags is the immutable capability bitmask of a device. Bit positions are
// part of the serialized form and must not change.
type Flags uint32

const (
	FlagInternal                  Flags = 1 << 0
	FlagExternal                  Flags = 1 << 1
	FlagEchoCancellationSupported Flags = 1 << 2
	FlagFrontFacing               Flags = 1 << 6
	FlagFlashSupported            Flags = 1 << 7
	FlagTorchSupported            Flags = 1 << 8
	FlagExposurePointSupported    Flags = 1 << 9
	FlagFocusPointSupported       Flags = 1 << 10
	FlagExposureLockSupported     Flags = 1 << 11
	FlagFocusLockSupported        Flags = 1 << 12
	FlagWhiteBalanceLockSupported Flags = 1 << 13
)

const typeMask Flags = FlagInternal | FlagExternal

var flagNames = map[Flags]string{
	FlagInternal:                  "internal",
	FlagExternal:                  "external",
	FlagEchoCancellationSupported: "echo_cancellation",
	FlagFrontFacing:               "front_facing",
	FlagFlashSupported:            "flash",
	FlagTorchSupported:            "torch",
	FlagExposurePointSupported:    "exposure_point",
	FlagFocusPointSupported:       "focus_point",
	FlagExposureLockSupported:     "exposure_lock",
	FlagFocusLockSupported:        "focus_lock",
	FlagWhiteBalanceLockSupported: "white_balance_lock",
}

// Has reports whether every bit in mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

func (f Flags) FrontFacing() bool      { return f.Has(FlagFrontFacing) }
func (f Flags) Flash() bool            { return f.Has(FlagFlashSupported) }
func (f Flags) Torch() bool            { return f.Has(FlagTorchSupported) }
func (f Flags) ExposurePoint() bool    { return f.Has(FlagExposurePointSupported) }
func (f Flags) FocusPoint() bool       { return f.Has(FlagFocusPointSupported) }
func (f Flags) ExposureLock() bool     { return f.Has(FlagExposureLockSupported) }
func (f Flags) FocusLock() bool        { return f.Has(FlagFocusLockSupported) }
func (f Flags) WhiteBalanceLock() bool { return f.Has(FlagWhiteBalanceLockSupported) }
func (f Flags) EchoCancellation() bool { return f.Has(FlagEchoCancellationSupported) }
func (f Flags) Type() DeviceType       { return DeviceType(f & typeMask) }

// Names returns the flag names set in f, sorted.
func (f Flags) Names() []string {
	names := make([]string, 0, len(flagNames))
	for bit, name := range flagNames {
		if f.Has(bit) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), "|")
}

// ParseFlags builds a flag set from names as produced by Names.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, name := range names {
		bit, ok := flagByName(name)
		if !ok {
			return 0, NewError(ErrCodeInvalidArgument, fmt.Sprintf("unknown device flag %q", name), nil)
		}
		f |= bit
	}
	return f, nil
}

func flagByName(name string) (Flags, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for bit, n := range flagNames {
		if n == name {
			return bit, true
		}
	}
	return 0, false
}

// DeviceType is derived from the low two flag bits.
type DeviceType uint8

const (
	TypeUnknown  DeviceType = 0
	TypeInternal DeviceType = 1
	TypeExternal DeviceType = 2
)

func (t DeviceType) String() string {
	switch t {
	case TypeInternal:
		return "internal"
	case TypeExternal:
		return "external"
	default:
		return "unknown"
	}
}
