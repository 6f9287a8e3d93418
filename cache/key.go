package cache

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Key identifies a row by its primary key values. Keys are comparable and
// two keys built from element-wise equal values are equal, so a Key can
// address both the committed store and the uncommitted overlay.
type Key struct {
	enc string
}

// KeyFunc extracts the primary key values of a row, in primary key column order.
type KeyFunc[R any] func(row R) []any

// NewKey builds the key of a primary key tuple.
//
// Integers compare by value whatever their width or signedness. Byte
// slices compare by content and times by instant.
func NewKey(values ...any) (Key, error) {
	if len(values) == 0 {
		return Key{}, newError(ErrIllegalOperation, "key", Key{}, "empty primary key")
	}
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := encodeKeyValue(&b, v); err != nil {
			return Key{}, newError(ErrIllegalOperation, "key", Key{}, "primary key value %d: %v", i, err)
		}
	}
	return Key{enc: b.String()}, nil
}

// MustKey is like NewKey but panics on unsupported values.
func MustKey(values ...any) Key {
	k, err := NewKey(values...)
	if err != nil {
		panic(err)
	}
	return k
}

// KeyOf builds the key of row using fn.
func KeyOf[R any](fn KeyFunc[R], row R) (Key, error) {
	return NewKey(fn(row)...)
}

// IsZero reports whether k was never assigned.
func (k Key) IsZero() bool {
	return k.enc == ""
}

func (k Key) String() string {
	return "(" + k.enc + ")"
}

func encodeKeyValue(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case int:
		writeInt(b, int64(t))
	case int8:
		writeInt(b, int64(t))
	case int16:
		writeInt(b, int64(t))
	case int32:
		writeInt(b, int64(t))
	case int64:
		writeInt(b, t)
	case uint:
		writeUint(b, uint64(t))
	case uint8:
		writeUint(b, uint64(t))
	case uint16:
		writeUint(b, uint64(t))
	case uint32:
		writeUint(b, uint64(t))
	case uint64:
		writeUint(b, t)
	case float32:
		writeFloat(b, float64(t))
	case float64:
		writeFloat(b, t)
	case bool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(t))
	case string:
		b.WriteString("s:")
		b.WriteString(strconv.Quote(t))
	case []byte:
		b.WriteString("x:")
		b.WriteString(hex.EncodeToString(t))
	case time.Time:
		b.WriteString("t:")
		b.WriteString(t.UTC().Format(time.RFC3339Nano))
	case fmt.Stringer:
		// named types such as uuids
		b.WriteString(fmt.Sprintf("%T:", t))
		b.WriteString(strconv.Quote(t.String()))
	default:
		return fmt.Errorf("unsupported type %T", v)
	}
	return nil
}

func writeInt(b *strings.Builder, v int64) {
	b.WriteString("i:")
	b.WriteString(strconv.FormatInt(v, 10))
}

func writeUint(b *strings.Builder, v uint64) {
	if v <= math.MaxInt64 {
		// keep uint(42) and int(42) on the same slot
		writeInt(b, int64(v))
		return
	}
	b.WriteString("u:")
	b.WriteString(strconv.FormatUint(v, 10))
}

func writeFloat(b *strings.Builder, v float64) {
	b.WriteString("f:")
	b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}
