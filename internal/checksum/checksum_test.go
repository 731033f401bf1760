package checksum

import "testing"

func TestSum(t *testing.T) {
	// SHA-256 of the empty string.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestETag(t *testing.T) {
	a := ETag([]byte(`{"id":"1"}`))
	if len(a) != 18 || a[0] != '"' || a[17] != '"' {
		t.Fatalf("ETag = %s", a)
	}
	if a != ETag([]byte(`{"id":"1"}`)) {
		t.Error("ETag is not stable")
	}
	if a == ETag([]byte(`{"id":"2"}`)) {
		t.Error("different bodies share an ETag")
	}
}
