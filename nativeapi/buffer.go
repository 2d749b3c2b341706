package nativeapi

import (
	"bytes"
	"strings"

	"github.com/wippyai/polyglot-native/errors"
)

// AutoLength passed as a string length means the input is NUL terminated.
const AutoLength = ^uint64(0)

// writeString fills a caller buffer using the two-pass convention. With a
// nil buf only the required size in bytes is stored. Otherwise up to
// len(buf) bytes are copied, a NUL follows when there is room for it, and
// the number of bytes copied is stored.
func writeString(s string, buf []byte, result *uint64) error {
	if err := out(result, "result"); err != nil {
		return err
	}
	if buf == nil {
		*result = uint64(len(s))
		return nil
	}
	n := copy(buf, s)
	if n < len(buf) {
		buf[n] = 0
	}
	*result = uint64(n)
	return nil
}

// readString decodes a caller string of length bytes, or up to the first
// NUL for AutoLength. Invalid UTF-8 is replaced.
func readString(b []byte, length uint64) (string, error) {
	if length == AutoLength {
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
	} else {
		if length > uint64(len(b)) {
			return "", errors.OutOfBounds(errors.PhaseBoundary, []string{"length"}, int64(length), int64(len(b)))
		}
		b = b[:length]
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}
