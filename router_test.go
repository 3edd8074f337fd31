package corehttp

import "testing"

func TestParsePatternAndMatch(t *testing.T) {
	pat := ParsePattern("/users/{id}/posts/{n:int}")
	values, ok := matchPattern(pat, []string{"users", "42", "posts", "7"})
	if !ok {
		t.Fatal("expected pattern to match")
	}
	if len(values) != 2 || values[0].Str != "42" || values[1].Int != 7 {
		t.Fatalf("unexpected values: %+v", values)
	}
}

func TestMatchPatternIntHoleRejectsNonInt(t *testing.T) {
	pat := ParsePattern("/posts/{n:int}")
	_, ok := matchPattern(pat, []string{"posts", "abc"})
	if ok {
		t.Fatal("non-numeric segment must not match an int hole")
	}
}

func TestMatchPatternRestHole(t *testing.T) {
	pat := ParsePattern("/static/{...}")
	values, ok := matchPattern(pat, []string{"static", "css", "site.css"})
	if !ok {
		t.Fatal("expected rest hole to match")
	}
	if values[0].Str != "css/site.css" {
		t.Fatalf("rest value = %q", values[0].Str)
	}
}

func TestRouterLaterRegistrationWins(t *testing.T) {
	rt := NewRouter()
	rt.AddPathHandler("/x", nil, nil, func(_ []RouteValue, _ RequestString) (Response, error) {
		return NewResponse(StatusOK, StringBody("first")), nil
	})
	rt.AddPathHandler("/x", nil, nil, func(_ []RouteValue, _ RequestString) (Response, error) {
		return NewResponse(StatusOK, StringBody("second")), nil
	})

	resp, err := rt.Dispatch(RequestUnit{Path: "/x"}, func() (RequestString, error) {
		return RequestString{}, nil
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Body.str != "second" {
		t.Fatalf("expected the later registration to win, got %q", resp.Body.str)
	}
}

func TestRouterNoMatchUsesTopHandler(t *testing.T) {
	rt := NewRouter()
	resp, err := rt.Dispatch(RequestUnit{Path: "/missing"}, func() (RequestString, error) {
		return RequestString{}, nil
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != StatusNotFound {
		t.Fatalf("Code = %d, want 404", resp.Code)
	}
}

func TestRouterAcceptPredicatePrecedesBodyRead(t *testing.T) {
	rt := NewRouter()
	rt.AddPathHandler("/upload", nil,
		func(RequestUnit) *Error { return NewAcceptRejection(StatusContentTooLarge, "too big") },
		func(_ []RouteValue, req RequestString) (Response, error) {
			return NewResponse(StatusOK, StringBody("should not run")), nil
		},
	)

	bodyRead := false
	resp, err := rt.Dispatch(RequestUnit{Path: "/upload"}, func() (RequestString, error) {
		bodyRead = true
		return RequestString{}, nil
	})
	if bodyRead {
		t.Fatal("accept predicate rejection must prevent the body from being read")
	}
	if err == nil {
		t.Fatal("expected an error for a rejected request")
	}
	if resp.Code != StatusContentTooLarge {
		t.Fatalf("Code = %d, want 413", resp.Code)
	}
}

func TestRouterMethodFilter(t *testing.T) {
	rt := NewRouter()
	post := MethodPost
	rt.AddPathHandler("/thing", &post, nil, func(_ []RouteValue, _ RequestString) (Response, error) {
		return NewResponse(StatusOK, StringBody("posted")), nil
	})

	resp, err := rt.Dispatch(RequestUnit{Path: "/thing", Method: MethodGet}, func() (RequestString, error) {
		return RequestString{}, nil
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != StatusNotFound {
		t.Fatalf("GET should fall through to the top handler, got %d", resp.Code)
	}
}
