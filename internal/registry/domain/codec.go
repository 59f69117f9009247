package domain

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Layout (little-endian, fixed width, no version tag):
//
//	u16 client_limit
//	u64 count, then count x (u64 len, len bytes UTF-8)   protected_paths
//	u64 count, then count x (u64 len, len bytes UTF-8)   unprotected_paths
const (
	clientLimitSize = 2
	lengthSize      = 8
)

// Encode serializes a record into its fixed binary layout.
// It fails only for paths that are not valid UTF-8, which Decode would reject.
func Encode(api Api) ([]byte, error) {
	size := clientLimitSize + encodedListSize(api.ProtectedPaths) + encodedListSize(api.UnprotectedPaths)
	out := make([]byte, 0, size)

	out = binary.LittleEndian.AppendUint16(out, api.ClientLimit)

	var err error
	if out, err = appendList(out, "protected_paths", api.ProtectedPaths); err != nil {
		return nil, err
	}
	if out, err = appendList(out, "unprotected_paths", api.UnprotectedPaths); err != nil {
		return nil, err
	}
	return out, nil
}

func encodedListSize(items []string) int {
	n := lengthSize
	for _, s := range items {
		n += lengthSize + len(s)
	}
	return n
}

func appendList(out []byte, field string, items []string) ([]byte, error) {
	out = binary.LittleEndian.AppendUint64(out, uint64(len(items)))
	for i, s := range items {
		if !utf8.ValidString(s) {
			return nil, &EncodeError{Reason: fmt.Sprintf("%s[%d] is not valid UTF-8", field, i)}
		}
		out = binary.LittleEndian.AppendUint64(out, uint64(len(s)))
		out = append(out, s...)
	}
	return out, nil
}

// Decode parses bytes produced by Encode.
// Truncated input, impossible lengths, invalid UTF-8 and trailing bytes all
// yield a DecodeError.
func Decode(data []byte) (Api, error) {
	d := decoder{data: data}

	limit, err := d.uint16("client_limit")
	if err != nil {
		return Api{}, err
	}
	protected, err := d.list("protected_paths")
	if err != nil {
		return Api{}, err
	}
	unprotected, err := d.list("unprotected_paths")
	if err != nil {
		return Api{}, err
	}
	if rest := len(d.data) - d.off; rest != 0 {
		return Api{}, &DecodeError{Reason: fmt.Sprintf("%d trailing bytes", rest)}
	}

	return Api{
		ClientLimit:      limit,
		ProtectedPaths:   protected,
		UnprotectedPaths: unprotected,
	}, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) remaining() int { return len(d.data) - d.off }

func (d *decoder) uint16(field string) (uint16, error) {
	if d.remaining() < clientLimitSize {
		return 0, truncated(field, clientLimitSize, d.remaining())
	}
	v := binary.LittleEndian.Uint16(d.data[d.off:])
	d.off += clientLimitSize
	return v, nil
}

// length reads a u64 length prefix and checks it against the bytes left,
// so a corrupt prefix can never drive a huge allocation.
func (d *decoder) length(field string, unit int) (int, error) {
	if d.remaining() < lengthSize {
		return 0, truncated(field, lengthSize, d.remaining())
	}
	raw := binary.LittleEndian.Uint64(d.data[d.off:])
	d.off += lengthSize

	if raw > math.MaxInt32 || int(raw) > d.remaining()/unit {
		return 0, &DecodeError{Reason: fmt.Sprintf("%s: length %d exceeds remaining %d bytes", field, raw, d.remaining())}
	}
	return int(raw), nil
}

func (d *decoder) list(field string) ([]string, error) {
	// Each element needs at least its own length prefix.
	count, err := d.length(field, lengthSize)
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, count)
	for i := 0; i < count; i++ {
		elem := fmt.Sprintf("%s[%d]", field, i)
		n, err := d.length(elem, 1)
		if err != nil {
			return nil, err
		}
		raw := d.data[d.off : d.off+n]
		if !utf8.Valid(raw) {
			return nil, &DecodeError{Reason: elem + " is not valid UTF-8"}
		}
		items = append(items, string(raw))
		d.off += n
	}
	return items, nil
}

func truncated(field string, want, have int) error {
	return &DecodeError{Reason: fmt.Sprintf("%s: truncated, need %d bytes, have %d", field, want, have)}
}
