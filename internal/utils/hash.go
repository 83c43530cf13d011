package utils

import (
	"crypto/sha1"
	"fmt"
)

// ItemID is the stable identity of an item: the first 16 hex characters of
// SHA-1 over link and title.
func ItemID(link, title string) string {
	sum := sha1.Sum([]byte(link + "|" + title))
	return fmt.Sprintf("%x", sum)[:16]
}
