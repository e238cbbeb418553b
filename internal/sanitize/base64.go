package sanitize

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// base64Pat is a strict alphabet-and-padding check applied after
// stripping newlines.
var base64Pat = regexp.MustCompile(`^(?:[A-Za-z0-9+/]{4})*(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=)?$`)

// trimThreshold is the payload length above which base64-looking text is
// fingerprinted instead of printed.
const trimThreshold = 64

// TrimBase64 replaces a long base64-looking payload with an 8-character
// prefix and a content-hash fingerprint. This is a display transform for
// mismatch reports only; equality is always decided on the full value.
func TrimBase64(s string) string {
	if len(s) > trimThreshold && base64Pat.MatchString(strings.ReplaceAll(s, "\n", "")) {
		return fmt.Sprintf("%s...<snip base64, md5=%s...>", s[:8], hashString(s)[:16])
	}
	return s
}

// hashString fingerprints report payloads. md5 is fine here: the hash
// identifies content in a diff, it is not a security boundary.
func hashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
