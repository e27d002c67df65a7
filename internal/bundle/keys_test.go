package bundle

import "testing"

// --- ClassnameKey ---

func TestClassnameKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"pascal case", "PaymentProcessor", "PAYMENT-PROCESSOR"},
		{"camel case", "paymentProcessor", "PAYMENT-PROCESSOR"},
		{"snake case", "handle_retry", "HANDLE-RETRY"},
		{"spaces", "Payment processor", "PAYMENT-PROCESSOR"},
		{"digits", "OAuth2Client", "OAUTH2-CLIENT"},
		{"already key shaped", "PAYMENT-PROCESSOR", "PAYMENT-PROCESSOR"},
		{"dots", "pkg.util", "PKG-UTIL"},
		{"empty", "", "UNNAMED"},
		{"only symbols", "___", "UNNAMED"},
		{"surrounding whitespace", "  retry  ", "RETRY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassnameKey(tt.in); got != tt.want {
				t.Errorf("ClassnameKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassnameKey_TruncatesLongNames(t *testing.T) {
	long := ""
	for i := 0; i < 20; i++ {
		long += "VeryLongTypeName"
	}
	key := ClassnameKey(long)
	if len(key) > maxKeyLen {
		t.Errorf("key length = %d, want <= %d", len(key), maxKeyLen)
	}
	if key[len(key)-1] == '-' {
		t.Errorf("truncated key %q ends with a hyphen", key)
	}
}

// --- SequentialKey ---

func TestSequentialKey(t *testing.T) {
	if got := SequentialKey("FEATURE", 1); got != "FEATURE-001" {
		t.Errorf("SequentialKey = %q, want FEATURE-001", got)
	}
	if got := SequentialKey("STORY", 42); got != "STORY-042" {
		t.Errorf("SequentialKey = %q, want STORY-042", got)
	}
	if got := SequentialKey("FEATURE", 1234); got != "FEATURE-1234" {
		t.Errorf("SequentialKey = %q, want FEATURE-1234", got)
	}
}

// --- ValidateKeyFormat ---

func TestValidateKeyFormat(t *testing.T) {
	if err := ValidateKeyFormat(KeyClassname); err != nil {
		t.Errorf("classname rejected: %v", err)
	}
	if err := ValidateKeyFormat(KeySequential); err != nil {
		t.Errorf("sequential rejected: %v", err)
	}
	if err := ValidateKeyFormat("uuid"); err == nil {
		t.Error("unknown format accepted")
	}
}

// --- KeyAllocator ---

func TestKeyAllocator_ClassnameCollisions(t *testing.T) {
	alloc := NewKeyAllocator(KeyClassname, "FEATURE")

	first := alloc.Alloc("Store")
	second := alloc.Alloc("store")
	third := alloc.Alloc("Store")

	if first != "STORE" {
		t.Errorf("first = %q, want STORE", first)
	}
	if second != "STORE-2" {
		t.Errorf("second = %q, want STORE-2", second)
	}
	if third != "STORE-3" {
		t.Errorf("third = %q, want STORE-3", third)
	}
}

func TestKeyAllocator_Sequential(t *testing.T) {
	alloc := NewKeyAllocator(KeySequential, "STORY")
	if got := alloc.Alloc("anything"); got != "STORY-001" {
		t.Errorf("first = %q, want STORY-001", got)
	}
	if got := alloc.Alloc("other"); got != "STORY-002" {
		t.Errorf("second = %q, want STORY-002", got)
	}
}

func TestKeyAllocator_ReservePreventsCollision(t *testing.T) {
	alloc := NewKeyAllocator(KeyClassname, "FEATURE")
	alloc.Reserve("STORE")

	if got := alloc.Alloc("Store"); got != "STORE-2" {
		t.Errorf("Alloc after Reserve = %q, want STORE-2", got)
	}
}
