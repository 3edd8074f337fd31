package corehttp

// StreamTransformer wraps a request body Stream with another, e.g. a
// decompressor sitting in front of the raw transfer-decoded stream.
type StreamTransformer func(Stream) Stream

// DecodeRequestFunc observes a headers-only request and may return a
// replacement request (nil to leave it unchanged) plus a StreamTransformer
// to compose onto the eventual body stream (nil for none), per spec.md
// §4.H.
type DecodeRequestFunc func(unit RequestUnit) (replacement *RequestUnit, transform StreamTransformer, err error)

// EncodeResponseFunc observes the string-bodied request and the
// response-so-far, and may return a replacement response.
type EncodeResponseFunc func(req RequestString, resp Response) (Response, error)

// Chain holds the two ordered middleware lists of spec.md §4.H: decode
// callbacks run left-to-right on the inbound body, encode callbacks run
// left-to-right on the outbound response.
type Chain struct {
	decodes []DecodeRequestFunc
	encodes []EncodeResponseFunc
}

// AddDecodeRequestCB appends a request-decode callback.
func (c *Chain) AddDecodeRequestCB(f DecodeRequestFunc) {
	c.decodes = append(c.decodes, f)
}

// AddEncodeResponseCB appends a response-encode callback.
func (c *Chain) AddEncodeResponseCB(f EncodeResponseFunc) {
	c.encodes = append(c.encodes, f)
}

// RunDecode runs every decode callback over unit in registration order,
// threading replacement requests through and composing stream
// transformers so that, applied to the raw transfer-decoded stream, the
// first-registered transformer wraps it innermost.
func (c *Chain) RunDecode(unit RequestUnit) (RequestUnit, StreamTransformer, error) {
	composed := func(s Stream) Stream { return s }
	for _, f := range c.decodes {
		replacement, transform, err := f(unit)
		if err != nil {
			return RequestUnit{}, nil, err
		}
		if replacement != nil {
			unit = *replacement
		}
		if transform != nil {
			prev := composed
			composed = func(s Stream) Stream { return transform(prev(s)) }
		}
	}
	return unit, composed, nil
}

// RunEncode runs every encode callback over resp in registration order.
func (c *Chain) RunEncode(req RequestString, resp Response) (Response, error) {
	for _, f := range c.encodes {
		next, err := f(req, resp)
		if err != nil {
			return Response{}, err
		}
		resp = next
	}
	return resp, nil
}
