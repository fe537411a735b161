package resultcode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse normalizes a status value to its canonical signed 32-bit form.
// Accepted inputs are Go integer types, decimal text and 0x/0X-prefixed hex
// text. Values outside [-2^31, 2^32-1] and anything else report false.
func Parse(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case uint32:
		return int32(x), true
	case int:
		return fromInt64(int64(x))
	case int8:
		return int32(x), true
	case int16:
		return int32(x), true
	case int64:
		return fromInt64(x)
	case uint:
		return fromUint64(uint64(x))
	case uint8:
		return int32(x), true
	case uint16:
		return int32(x), true
	case uint64:
		return fromUint64(x)
	case string:
		return ParseString(x)
	case fmt.Stringer:
		return ParseString(x.String())
	default:
		return 0, false
	}
}

// ParseString parses decimal or 0x-prefixed hex status text.
func ParseString(s string) (int32, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		digits := s[2:]
		if len(digits) > 8 {
			return 0, false
		}
		n, err := strconv.ParseUint(digits, 16, 32)
		if err != nil {
			return 0, false
		}
		return int32(uint32(n)), true
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return fromInt64(n)
}

// Hex renders the unsigned bit pattern of raw as 0x-prefixed, 8-digit hex.
func Hex(raw int32) string {
	return fmt.Sprintf("0x%08X", uint32(raw))
}

func fromInt64(n int64) (int32, bool) {
	if n < math.MinInt32 || n > math.MaxUint32 {
		return 0, false
	}
	return int32(uint32(n)), true
}

func fromUint64(n uint64) (int32, bool) {
	if n > math.MaxUint32 {
		return 0, false
	}
	return int32(uint32(n)), true
}
