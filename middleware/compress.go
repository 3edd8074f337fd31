// Package middleware holds an optional EncodeResponseFunc implementation
// (Compress) built on top of the core request/response/middleware types,
// demonstrating the response-encode extension point against real codecs
// rather than exercising it only from core logic. It has no
// DecodeRequestFunc.
package middleware

import (
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/elwinmorel/corehttp"
)

// Compress returns an EncodeResponseFunc that negotiates the request's
// Accept-Encoding header and rewrites the response body into a compressed
// stream, preferring brotli over gzip when a client advertises both.
// level is passed straight to the underlying compressor's "level" knob
// (klauspost/compress/gzip or andybalholm/brotli); 0 means the library's
// own default.
//
// A compressed body is always emitted as a Stream: WriteResponse (see
// response.go) then drops any Content-Length and reframes it with
// Transfer-Encoding: chunked, since the compressed length isn't known
// ahead of time.
func Compress(level int) corehttp.EncodeResponseFunc {
	return func(req corehttp.RequestString, resp corehttp.Response) (corehttp.Response, error) {
		accept, ok := req.Header.Get("Accept-Encoding")
		if !ok {
			return resp, nil
		}
		accept = strings.ToLower(accept)

		switch {
		case strings.Contains(accept, "br"):
			resp.Body = corehttp.StreamBody(compressedStream(resp.Body.AsStream(), func(w io.Writer) io.WriteCloser {
				return brotli.NewWriterLevel(w, brotliLevel(level))
			}))
			resp.Header.Set("Content-Encoding", "br")
		case strings.Contains(accept, "gzip"):
			resp.Body = corehttp.StreamBody(compressedStream(resp.Body.AsStream(), func(w io.Writer) io.WriteCloser {
				gw, _ := gzip.NewWriterLevel(w, gzipLevel(level))
				return gw
			}))
			resp.Header.Set("Content-Encoding", "gzip")
		}
		return resp, nil
	}
}

func gzipLevel(level int) int {
	if level <= 0 {
		return gzip.DefaultCompression
	}
	return level
}

func brotliLevel(level int) int {
	if level <= 0 {
		return brotli.DefaultCompression
	}
	return level
}

// compressedStream pipes src through a compressor built by newWriter,
// exposing the compressed output as a corehttp.Stream. A goroutine drains
// src and feeds the compressor; the pipe carries backpressure so the
// goroutine blocks until the response writer consumes what's already been
// compressed.
func compressedStream(src corehttp.Stream, newWriter func(io.Writer) io.WriteCloser) corehttp.Stream {
	pr, pw := io.Pipe()
	go func() {
		cw := newWriter(pw)
		for {
			b, err := src.Peek()
			if err != nil {
				_ = cw.Close()
				_ = pw.CloseWithError(err)
				return
			}
			if len(b) == 0 {
				if err := cw.Close(); err != nil {
					_ = pw.CloseWithError(err)
					return
				}
				_ = pw.Close()
				return
			}
			if _, err := cw.Write(b); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
			if err := src.Consume(len(b)); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
		}
	}()
	return corehttp.NewConnStream(pr, 0)
}
