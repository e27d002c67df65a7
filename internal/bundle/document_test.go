package bundle

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestDocument_RoundTrip(t *testing.T) {
	b := testBundle()
	b.SortEntities()

	data, err := Document(b)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}

	parsed, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if !reflect.DeepEqual(b, parsed) {
		t.Errorf("round trip changed bundle:\n got %+v\nwant %+v", parsed, b)
	}
}

func TestDocument_OrderIndependent(t *testing.T) {
	b := testBundle()
	doc1, err := Document(b)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}

	// Reverse in-memory insertion order; the document must not move.
	b.Features[0], b.Features[1] = b.Features[1], b.Features[0]
	doc2, err := Document(b)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}

	if !bytes.Equal(doc1, doc2) {
		t.Error("document depends on in-memory feature order")
	}
}

func TestDocument_DoesNotMutateInput(t *testing.T) {
	b := testBundle() // features deliberately out of key order
	if _, err := Document(b); err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if b.Features[0].Key != "PAYMENT-PROCESSOR" {
		t.Error("Document reordered the caller's bundle")
	}
}

func TestParseDocument_Invalid(t *testing.T) {
	if _, err := ParseDocument([]byte("{not yaml: [")); err == nil {
		t.Fatal("ParseDocument accepted malformed input")
	} else if !strings.Contains(err.Error(), "parse document") {
		t.Errorf("error = %q", err)
	}
}
