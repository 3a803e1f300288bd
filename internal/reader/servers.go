package reader

import (
	"net/url"
	"strconv"
	"unicode/utf8"

	"golang.org/x/net/idna"

	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

// ServerRegistry deduplicates servers by name. The first registration of a
// name wins. It is not safe for concurrent use.
type ServerRegistry struct {
	byName map[string]*project.Server
	order  []*project.Server
}

func NewServerRegistry() *ServerRegistry {
	return &ServerRegistry{byName: make(map[string]*project.Server)}
}

// GetOrAdd returns the registered server for s.Name, registering s when the
// name is new. diverged reports that the registered server points at a
// different endpoint than s.
func (r *ServerRegistry) GetOrAdd(s project.Server) (srv *project.Server, diverged bool) {
	if existing, ok := r.byName[s.Name]; ok {
		return existing, !existing.SameEndpoint(&s)
	}
	srv = &s
	r.byName[s.Name] = srv
	r.order = append(r.order, srv)
	return srv, false
}

func (r *ServerRegistry) Len() int {
	return len(r.order)
}

func (r *ServerRegistry) List() []*project.Server {
	out := make([]*project.Server, len(r.order))
	copy(out, r.order)
	return out
}

// serverFor registers the server a URL points at.
func (s *Session) serverFor(u *url.URL) *project.Server {
	host := asciiHost(u.Hostname())
	scheme, _ := project.ParseScheme(u.Scheme)
	port := scheme.DefaultPort()
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	candidate := project.Server{
		Name:   lrscript.NormalizeName(host),
		Host:   host,
		Port:   port,
		Scheme: scheme,
	}
	srv, diverged := s.servers.GetOrAdd(candidate)
	if diverged {
		s.rep.Warnf(
			"server name %q already registered for %s; %s://%s:%d reuses it",
			srv.Name, srv, candidate.Scheme, candidate.Host, candidate.Port,
		)
	}
	return srv
}

// asciiHost converts internationalised host names to their ASCII form.
// Hosts that cannot be converted, such as template references, are kept.
func asciiHost(host string) string {
	if !hasNonASCII(host) {
		return host
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}

func hasNonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return true
		}
	}
	return false
}
