// Package naming expands output filename templates.
//
// Templates are plain paths with bracketed placeholders:
//
//	[name]         logical name (entry or chunk name, or source basename)
//	[id]           numeric chunk id
//	[ext]          extension without the leading dot
//	[hash]         content hash; [contenthash] and [chunkhash] are synonyms
//	[hash:N]       the first N hex digits of the content hash
//
// The content hash is the SHA-256 of the final bytes, so identical artifacts
// always receive identical names.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
)

// DefaultHashLength is the number of hex digits used by a bare [hash].
const DefaultHashLength = 20

var placeholder = regexp.MustCompile(`\[([a-z]+)(?::(\d+))?\]`)

// Vars are the values substituted into a template.
type Vars struct {
	Name    string
	ID      string
	Ext     string
	Content []byte
}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Expand substitutes v into tmpl. Unknown placeholders are left verbatim.
func Expand(tmpl string, v Vars) string {
	var digest string
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		switch sub[1] {
		case "name":
			return v.Name
		case "id":
			return v.ID
		case "ext":
			return v.Ext
		case "hash", "contenthash", "chunkhash":
			if digest == "" {
				digest = Hash(v.Content)
			}
			n := DefaultHashLength
			if sub[2] != "" {
				n, _ = strconv.Atoi(sub[2])
			}
			if n <= 0 || n > len(digest) {
				n = len(digest)
			}
			return digest[:n]
		}
		return m
	})
}
