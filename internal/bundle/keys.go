package bundle

import (
	"fmt"
	"strings"
)

// --- Key format policy ---

// KeyFormat selects how feature and story keys are generated.
type KeyFormat string

const (
	// KeyClassname derives keys from the source identifier, e.g.
	// "PaymentProcessor" -> "PAYMENT-PROCESSOR".
	KeyClassname KeyFormat = "classname"
	// KeySequential numbers entities in first-seen order, e.g.
	// "FEATURE-001", "STORY-003".
	KeySequential KeyFormat = "sequential"
)

// validKeyFormats is the set of allowed key formats.
var validKeyFormats = map[KeyFormat]bool{
	KeyClassname:  true,
	KeySequential: true,
}

// ValidateKeyFormat returns an error if the format is not recognized.
func ValidateKeyFormat(f KeyFormat) error {
	if !validKeyFormats[f] {
		return fmt.Errorf("invalid key format %q: must be one of: classname, sequential", f)
	}
	return nil
}

const maxKeyLen = 60

// ClassnameKey converts a source identifier into a stable key token.
// Example: "PaymentProcessor" -> "PAYMENT-PROCESSOR",
// "handle_retry" -> "HANDLE-RETRY". Empty input yields "UNNAMED".
func ClassnameKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "UNNAMED"
	}

	var b strings.Builder
	var prev rune
	prevHyphen := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			// Break camelCase boundaries: "paymentProcessor" -> PAYMENT-PROCESSOR.
			if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			prevHyphen = false
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
			prevHyphen = false
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
		prev = r
	}

	key := strings.Trim(b.String(), "-")
	if key == "" {
		return "UNNAMED"
	}
	if len(key) > maxKeyLen {
		key = strings.TrimRight(key[:maxKeyLen], "-")
	}
	return key
}

// SequentialKey formats a numbered key, e.g. SequentialKey("FEATURE", 1)
// -> "FEATURE-001".
func SequentialKey(prefix string, n int) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

// KeyAllocator hands out unique keys under the active key-format policy.
// Collisions are resolved by appending a numeric disambiguator in
// first-seen order, so the caller must feed candidates in a stable
// traversal order (lexicographic path order for extraction).
type KeyAllocator struct {
	format KeyFormat
	prefix string
	seen   map[string]int
	next   int
}

// NewKeyAllocator creates an allocator for one key namespace (one bundle's
// features, or one feature's stories).
func NewKeyAllocator(format KeyFormat, prefix string) *KeyAllocator {
	return &KeyAllocator{
		format: format,
		prefix: prefix,
		seen:   make(map[string]int),
		next:   1,
	}
}

// Alloc returns a unique key for the given source name.
func (a *KeyAllocator) Alloc(name string) string {
	var key string
	switch a.format {
	case KeySequential:
		key = SequentialKey(a.prefix, a.next)
		a.next++
	default:
		key = ClassnameKey(name)
	}

	n := a.seen[key]
	a.seen[key] = n + 1
	if n == 0 {
		return key
	}
	// First-seen keeps the bare key; later collisions get -2, -3, ...
	disambiguated := fmt.Sprintf("%s-%d", key, n+1)
	a.seen[disambiguated] = 1
	return disambiguated
}

// Reserve marks an existing key as taken, so merged-in extractor output
// never collides with keys already present in the bundle.
func (a *KeyAllocator) Reserve(key string) {
	if a.seen[key] == 0 {
		a.seen[key] = 1
	}
}
