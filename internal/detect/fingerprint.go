package detect

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"

	"github.com/graphrag/connectd/pkg/fact"
)

// Fingerprint returns a deterministic SHA-256 hex digest of everything
// that influences a detection run: the facts (count and content), the
// corpus, and the normalized options. Two logically identical requests
// fingerprint identically regardless of map iteration or pointer
// identity.
func Fingerprint(facts []fact.Fact, corpus string, opts Options) string {
	h := sha256.New()

	writeField := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	writeField(strconv.Itoa(len(facts)))
	for _, f := range facts {
		writeField(f.Text)
		writeField(string(f.Kind))
		writeField(strconv.FormatFloat(f.Confidence, 'g', -1, 64))
		// The entity count delimits each fact's field group; without it
		// a trailing entity list and the next fact's fields would form
		// one ambiguous sequence.
		writeField(strconv.Itoa(len(f.Entities)))
		for _, e := range f.Entities {
			writeField(e)
		}
	}

	writeField(corpus)

	// Options are normalized: defaults spelled out, kinds sorted.
	threshold := "default"
	if opts.Threshold != nil {
		threshold = strconv.FormatFloat(*opts.Threshold, 'g', -1, 64)
	}
	writeField(fmt.Sprintf("threshold=%s", threshold))
	writeField(fmt.Sprintf("max=%d", opts.MaxConnections))
	writeField(fmt.Sprintf("order=%s", opts.Order))

	kinds := make([]string, len(opts.Kinds))
	for i, k := range opts.Kinds {
		kinds[i] = string(k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		writeField("kind=" + k)
	}

	return hex.EncodeToString(h.Sum(nil))
}
