package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyVersion is folded into every key. Bump it when prompts or output
// schemas change so stale entries stop matching.
const KeyVersion = "v1"

// Key derives the cache key for a generation request.
//
// Fields are length-prefixed before hashing so ("ab", "c") and ("a", "bc")
// never collide. Options are JSON-encoded; struct field order keeps the
// encoding stable.
func Key(prompt, research string, options any) string {
	opts, err := json.Marshal(options)
	if err != nil {
		opts = []byte(fmt.Sprintf("%v", options))
	}

	h := sha256.New()
	for _, field := range []string{KeyVersion, prompt, research, string(opts)} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))
}
