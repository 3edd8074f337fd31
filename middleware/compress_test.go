package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/elwinmorel/corehttp"
)

func TestCompressGzipRoundTrip(t *testing.T) {
	enc := Compress(0)

	req := corehttp.RequestString{}
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp := corehttp.NewResponse(corehttp.StatusOK, corehttp.StringBody("hello, compressed world"))
	out, err := enc(req, resp)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !out.Body.IsStream() {
		t.Fatal("compressed body must be a stream so the writer reframes it as chunked")
	}
	if ce, _ := out.Header.Get("Content-Encoding"); ce != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", ce)
	}

	var compressed bytes.Buffer
	s := out.Body.AsStream()
	for {
		b, err := s.Peek()
		if err != nil {
			t.Fatalf("Peek: %v", err)
		}
		if len(b) == 0 {
			break
		}
		compressed.Write(b)
		if err := s.Consume(len(b)); err != nil {
			t.Fatalf("Consume: %v", err)
		}
	}

	gr, err := gzip.NewReader(&compressed)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	got, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("reading decompressed body: %v", err)
	}
	if string(got) != "hello, compressed world" {
		t.Fatalf("got %q", got)
	}
}

func TestCompressNoAcceptEncodingLeavesBodyAlone(t *testing.T) {
	enc := Compress(0)
	resp := corehttp.NewResponse(corehttp.StatusOK, corehttp.StringBody("plain"))
	out, err := enc(corehttp.RequestString{}, resp)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out.Body.IsStream() {
		t.Fatal("body must be left as a string when the client sends no Accept-Encoding")
	}
}
