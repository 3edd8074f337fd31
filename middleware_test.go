package corehttp

import (
	"errors"
	"testing"
)

func TestChainRunDecodeComposesTransformersInnermostFirst(t *testing.T) {
	var c Chain
	var order []string
	c.AddDecodeRequestCB(func(unit RequestUnit) (*RequestUnit, StreamTransformer, error) {
		return nil, func(s Stream) Stream {
			order = append(order, "a")
			return s
		}, nil
	})
	c.AddDecodeRequestCB(func(unit RequestUnit) (*RequestUnit, StreamTransformer, error) {
		return nil, func(s Stream) Stream {
			order = append(order, "b")
			return s
		}, nil
	})

	_, transform, err := c.RunDecode(RequestUnit{})
	if err != nil {
		t.Fatalf("RunDecode: %v", err)
	}
	transform(NewSliceStream(nil))
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected a then b (a wraps innermost, so it is applied first), got %v", order)
	}
}

func TestChainRunDecodeThreadsReplacement(t *testing.T) {
	var c Chain
	c.AddDecodeRequestCB(func(unit RequestUnit) (*RequestUnit, StreamTransformer, error) {
		replacement := unit
		replacement.Path = "/rewritten"
		return &replacement, nil, nil
	})

	got, _, err := c.RunDecode(RequestUnit{Path: "/original"})
	if err != nil {
		t.Fatalf("RunDecode: %v", err)
	}
	if got.Path != "/rewritten" {
		t.Fatalf("Path = %q, want /rewritten", got.Path)
	}
}

func TestChainRunDecodeStopsOnError(t *testing.T) {
	var c Chain
	wantErr := errors.New("boom")
	c.AddDecodeRequestCB(func(unit RequestUnit) (*RequestUnit, StreamTransformer, error) {
		return nil, nil, wantErr
	})
	called := false
	c.AddDecodeRequestCB(func(unit RequestUnit) (*RequestUnit, StreamTransformer, error) {
		called = true
		return nil, nil, nil
	})

	_, _, err := c.RunDecode(RequestUnit{})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if called {
		t.Fatal("a callback after a failing one must not run")
	}
}

func TestChainRunEncodeAppliesInOrder(t *testing.T) {
	var c Chain
	c.AddEncodeResponseCB(func(req RequestString, resp Response) (Response, error) {
		resp.Code = resp.Code + 1
		return resp, nil
	})
	c.AddEncodeResponseCB(func(req RequestString, resp Response) (Response, error) {
		resp.Code = resp.Code * 10
		return resp, nil
	})

	resp, err := c.RunEncode(RequestString{}, NewResponse(1, StringBody("")))
	if err != nil {
		t.Fatalf("RunEncode: %v", err)
	}
	if resp.Code != 20 {
		t.Fatalf("Code = %d, want 20 ((1+1)*10)", resp.Code)
	}
}
