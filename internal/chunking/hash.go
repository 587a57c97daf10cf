package chunking

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"
)

// Hash returns the idempotency key of a chunk: a blake3 digest over the
// book's hierarchy path (tradition, source, work, book), the chapter numbers
// and the verse numbers, in order. Path elements are length-prefixed so
// "a/b"+"c" and "a"+"b/c" differ. Identical groupings in the same book always
// hash the same, so re-ingestion reuses chunk rows, while the same grouping in
// another translation never does.
func Hash(path []string, chapters, verses []int) string {
	h := blake3.New()
	buf := make([]byte, 0, 96+len(verses)*4)
	for _, name := range path {
		buf = strconv.AppendInt(buf, int64(len(name)), 10)
		buf = append(buf, ':')
		buf = append(buf, name...)
		buf = append(buf, '/')
	}
	buf = append(buf, 0)
	buf = appendInts(buf, chapters)
	buf = append(buf, 0)
	buf = appendInts(buf, verses)
	_, _ = h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}

func appendInts(buf []byte, nums []int) []byte {
	for i, n := range nums {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(n), 10)
	}
	return buf
}
