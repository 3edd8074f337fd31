package corehttp

import "testing"

func TestChunkedStreamDecodesBody(t *testing.T) {
	raw := "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	cs := newChunkedStream(NewSliceStream([]byte(raw)))
	got, err := ReadAll(cs)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got != "Wikipedia" {
		t.Fatalf("got %q, want %q", got, "Wikipedia")
	}
}

func TestChunkedStreamDiscardsTrailer(t *testing.T) {
	raw := "4\r\nWiki\r\n0\r\nX-Trailer: yes\r\n\r\n"
	cs := newChunkedStream(NewSliceStream([]byte(raw)))
	got, err := ReadAll(cs)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got != "Wiki" {
		t.Fatalf("got %q, want %q", got, "Wiki")
	}
}

func TestChunkedStreamMalformedSize(t *testing.T) {
	raw := "zz\r\nWiki\r\n"
	cs := newChunkedStream(NewSliceStream([]byte(raw)))
	_, err := ReadAll(cs)
	if err == nil {
		t.Fatal("expected an error for malformed chunk size")
	}
}

func TestChunkedStreamTruncatedMidChunk(t *testing.T) {
	raw := "10\r\nshort"
	cs := newChunkedStream(NewSliceStream([]byte(raw)))
	_, err := ReadAll(cs)
	if err == nil {
		t.Fatal("expected an error for a body truncated mid-chunk")
	}
}

func TestLimitedStreamReadsExactLength(t *testing.T) {
	raw := "hello, world!!"
	ls := newLimitedStream(NewSliceStream([]byte(raw)), 5)
	got, err := ReadAll(ls)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestLimitedStreamFailsOnEarlyEOF(t *testing.T) {
	ls := newLimitedStream(NewSliceStream([]byte("abc")), 10)
	_, err := ReadAll(ls)
	if err == nil {
		t.Fatal("expected an error when the connection ends before content-length bytes arrive")
	}
}

func TestEmptyStreamYieldsNothing(t *testing.T) {
	got, err := ReadAll(emptyStream{})
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
