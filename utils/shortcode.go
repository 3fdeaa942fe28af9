package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// ShortCode derives a 6-character code from the URL salted with the current
// time, so repeated calls for the same URL yield distinct codes
func ShortCode(url string, now time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s%d", url, now.UnixNano())))
	return hex.EncodeToString(sum[:])[:6]
}
