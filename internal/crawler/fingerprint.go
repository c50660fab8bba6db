package crawler

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// ArticleID derives the stable identifier of an article from its canonical URL
func ArticleID(articleURL string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(articleURL)))
	return hex.EncodeToString(sum[:])
}
