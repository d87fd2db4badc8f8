package stockcount

import (
	"crypto/rand"
	"time"
)

// codeAlphabet omits characters easy to misread on a handheld screen.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const codeSuffixLen = 4

// maxCodeAttempts bounds retries on code collisions during Create.
const maxCodeAttempts = 5

// newCode returns a human-readable count code, e.g. SC-20260830-7KQX.
func newCode(now time.Time) string {
	buf := make([]byte, codeSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return "SC-" + now.UTC().Format("20060102") + "-" + string(buf)
}
