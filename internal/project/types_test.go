package project

import "testing"

func TestParseScheme(t *testing.T) {
	cases := []struct {
		in   string
		want Scheme
		ok   bool
	}{
		{"http", SchemeHTTP, true},
		{"HTTPS", SchemeHTTPS, true},
		{" https ", SchemeHTTPS, true},
		{"ftp", SchemeHTTP, false},
		{"", SchemeHTTP, false},
	}
	for _, tc := range cases {
		got, ok := ParseScheme(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseScheme(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
	if SchemeHTTPS.DefaultPort() != 443 || SchemeHTTP.DefaultPort() != 80 {
		t.Fatalf("unexpected default ports")
	}
}

func TestParseHTTPMethod(t *testing.T) {
	if m, ok := ParseHTTPMethod("POST"); !ok || m != MethodPost {
		t.Fatalf("expected POST, got %v %v", m, ok)
	}
	if m, ok := ParseHTTPMethod("post"); ok || m != MethodGet {
		t.Fatalf("lower-case method should fall back to GET, got %v %v", m, ok)
	}
}

func TestParameterEqual(t *testing.T) {
	a := NewParameter("Arg", "value 4")
	b := NewParameter("Arg", "value 4")
	if !a.Equal(b) {
		t.Fatalf("expected equal parameters")
	}
	if a.Equal(Parameter{Name: "Arg"}) {
		t.Fatalf("value-less parameter must differ")
	}
	if !(Parameter{Name: "x"}).Equal(Parameter{Name: "x"}) {
		t.Fatalf("value-less parameters with same name are equal")
	}
}

func TestRequestValidate(t *testing.T) {
	ok := &Request{Kind: KindPostBinary, Name: "r", Binary: &BinaryBody{Data: []byte{}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mixed := &Request{
		Kind:   KindPostBinary,
		Name:   "r",
		Binary: &BinaryBody{Data: []byte("x")},
		Text:   &TextBody{Data: "x"},
	}
	if err := mixed.Validate(); err == nil {
		t.Fatalf("expected mismatch error for binary request with text body")
	}

	noBytes := &Request{Kind: KindPostBinary, Name: "r", Binary: &BinaryBody{}}
	if err := noBytes.Validate(); err == nil {
		t.Fatalf("expected error for binary request without bytes")
	}

	plain := &Request{Kind: KindGetPlain, Name: "r"}
	if err := plain.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProjectStats(t *testing.T) {
	inner := &Container{Name: "login", Children: []Element{
		&Page{Name: "p2", Children: []*Request{{Name: "a"}, {Name: "b"}}},
	}}
	root := &Container{Name: "Action", Children: []Element{
		&Page{Name: "p1", Children: []*Request{{Name: "c"}}},
		inner,
		&AddCookie{Name: "cookie"},
	}}
	st := (&Project{UserPaths: []*Container{root}}).Stats()
	if st.Containers != 2 || st.Pages != 2 || st.Requests != 3 || st.Cookies != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestServerSameEndpoint(t *testing.T) {
	a := &Server{Name: "h", Host: "Example.com", Port: 443, Scheme: SchemeHTTPS}
	b := &Server{Name: "h", Host: "example.com", Port: 443, Scheme: SchemeHTTPS}
	c := &Server{Name: "h", Host: "example.com", Port: 8443, Scheme: SchemeHTTPS}
	if !a.SameEndpoint(b) || a.SameEndpoint(c) {
		t.Fatalf("unexpected endpoint comparison")
	}
	if !a.TLS() {
		t.Fatalf("https server must report TLS")
	}
}
