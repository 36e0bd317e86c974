package ad

// Goroutine-keyed tape lookup. Each goroutine records on its own tape;
// the id is parsed from the first line of the goroutine's stack trace.

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// goid returns the id of the calling goroutine.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// The trace starts with "goroutine <id> [running]:".
	line := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	end := bytes.IndexByte(line, ' ')
	if end < 0 {
		panic("ad: cannot parse goroutine id")
	}
	id, err := strconv.ParseInt(string(line[:end]), 10, 64)
	if err != nil {
		panic("ad: cannot parse goroutine id: " + err.Error())
	}
	return id
}
