package reader

import (
	"errors"
	"net/url"
	"testing"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/vars"
)

func TestResolveURLAbsolute(t *testing.T) {
	t.Parallel()

	u, err := ResolveURL(lrscript.DefaultSyntax(), "https://server.test.com/test/path?Arg=value%204")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Scheme != "https" || u.Hostname() != "server.test.com" || rawPath(u) != "/test/path" {
		t.Fatalf("unexpected url %#v", u)
	}
	if u.RawQuery != "Arg=value%204" {
		t.Fatalf("unexpected query %q", u.RawQuery)
	}
}

func TestResolveURLKeepsEncodedPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"http://h.test/a%20b/c?x=1", "/a%20b/c"},
		{"http://h.test/a%2Fb/c", "/a%2Fb/c"},
		{"http://h.test/{dir}/a%20b", "/${dir}/a%20b"},
		{"http://{host}/a%20b/{id}", "/a%20b/${id}"},
		{"http://h.test/plain/path", "/plain/path"},
	}
	for _, tc := range cases {
		u, err := ResolveURL(lrscript.DefaultSyntax(), tc.in)
		if err != nil {
			t.Fatalf("ResolveURL(%q): %v", tc.in, err)
		}
		if got := rawPath(u); got != tc.want {
			t.Fatalf("rawPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveURLSchemeFallback(t *testing.T) {
	t.Parallel()

	u, err := ResolveURL(lrscript.DefaultSyntax(), "{BaseUrl}/index.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("expected http scheme, got %q", u.Scheme)
	}
	if u.Host != "${BaseUrl}" || u.Path != "/index.html" {
		t.Fatalf("unexpected host/path %q %q", u.Host, u.Path)
	}
}

func TestResolveURLTemplatedHost(t *testing.T) {
	t.Parallel()

	syn := lrscript.Syntax{Vars: vars.Mapping{"host": "server_host"}}
	u, err := ResolveURL(syn, "https://{host}:8443/{page}.html?id={id}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Hostname() != "${server_host}" || u.Port() != "8443" {
		t.Fatalf("unexpected host %q port %q", u.Hostname(), u.Port())
	}
	if u.Path != "/${page}.html" || u.RawQuery != "id=${id}" {
		t.Fatalf("unexpected path/query %q %q", u.Path, u.RawQuery)
	}
}

func TestResolveURLErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		kind URLErrorKind
	}{
		{"index.html", URLMissingScheme},
		{"/relative/{x}", URLMissingScheme},
		{"ftp://files.test.com/a", URLMalformed},
		{"http://", URLMalformed},
		{"http://bad host/", URLMalformed},
		{"localhost:8080/x", URLMalformed},
	}
	for _, tc := range cases {
		_, err := ResolveURL(lrscript.DefaultSyntax(), tc.in)
		if err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
		var ue *URLError
		if !errors.As(err, &ue) {
			t.Fatalf("%q: expected URLError, got %v", tc.in, err)
		}
		if ue.Kind != tc.kind {
			t.Fatalf("%q: expected kind %v, got %v", tc.in, tc.kind, ue.Kind)
		}
		if errdef.CodeOf(err) != errdef.CodeParse {
			t.Fatalf("%q: expected parse code, got %q", tc.in, errdef.CodeOf(err))
		}
	}
}

func TestResolveURLRetriesOnce(t *testing.T) {
	t.Parallel()

	// the retried candidate still has no usable host
	_, err := ResolveURL(lrscript.DefaultSyntax(), "{a")
	var ue *URLError
	if !errors.As(err, &ue) || ue.Kind != URLMalformed {
		t.Fatalf("expected a single malformed failure, got %v", err)
	}
}

func TestExtraResourceURLs(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://server.test.com/a/b.html")
	tokens := []string{
		"Url=/img/a.png", "ENDITEM",
		"URL=c.css", "Referer=x", "ENDITEM",
		"Referer=only", "ENDITEM",
		"Url=ftp://files.test.com/f", "ENDITEM",
		"Url=https://cdn.test.com/app.js", "ENDITEM",
		"Url=/unterminated.js",
	}
	var reports int
	got := ExtraResourceURLs(tokens, base, lrscript.ItemOptions{}, func(string, ...any) { reports++ })

	want := []string{
		"https://server.test.com/img/a.png",
		"https://server.test.com/a/c.css",
		"https://cdn.test.com/app.js",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d urls, got %v", len(want), got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("url %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if reports != 1 {
		t.Fatalf("expected one reported failure, got %d", reports)
	}

	kept := ExtraResourceURLs(tokens, base, lrscript.ItemOptions{KeepUnterminated: true}, nil)
	if len(kept) != 4 {
		t.Fatalf("expected trailing item to be kept, got %v", kept)
	}
}
