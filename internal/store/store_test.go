package store

import "testing"

func TestDocumentStr(t *testing.T) {
	doc := Document{"username": "budi", "empty": "", "count": 3.0}

	if v, ok := doc.Str("username"); !ok || v != "budi" {
		t.Fatalf("expected budi, got %q ok=%v", v, ok)
	}
	if _, ok := doc.Str("empty"); ok {
		t.Fatalf("empty string must not count as present")
	}
	if _, ok := doc.Str("count"); ok {
		t.Fatalf("non-string must not count as present")
	}
	if _, ok := doc.Str("missing"); ok {
		t.Fatalf("missing field must not count as present")
	}
	if _, ok := Document(nil).Str("username"); ok {
		t.Fatalf("nil document must not panic or match")
	}
}

func TestDocumentChild(t *testing.T) {
	doc := Document{
		"currentUser": map[string]any{"username": "budi"},
		"flat":        "value",
	}

	if v, ok := doc.Child("currentUser").Str("username"); !ok || v != "budi" {
		t.Fatalf("expected nested username, got %q ok=%v", v, ok)
	}
	if doc.Child("flat") != nil {
		t.Fatalf("non-object child must be nil")
	}
	if doc.Child("missing") != nil {
		t.Fatalf("missing child must be nil")
	}
	// Chained access through a missing child must be safe.
	if _, ok := doc.Child("missing").Str("username"); ok {
		t.Fatalf("expected miss through nil child")
	}
}

func TestDocumentNum(t *testing.T) {
	doc := Document{"lat": -6.2, "name": "x"}

	if v, ok := doc.Num("lat"); !ok || v != -6.2 {
		t.Fatalf("expected -6.2, got %v ok=%v", v, ok)
	}
	if _, ok := doc.Num("name"); ok {
		t.Fatalf("non-number must not count as present")
	}
}
