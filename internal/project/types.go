package project

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Scheme int

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
)

func ParseScheme(s string) (Scheme, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "http":
		return SchemeHTTP, true
	case "https":
		return SchemeHTTPS, true
	default:
		return SchemeHTTP, false
	}
}

func (s Scheme) String() string {
	if s == SchemeHTTPS {
		return "https"
	}
	return "http"
}

func (s Scheme) DefaultPort() int {
	if s == SchemeHTTPS {
		return 443
	}
	return 80
}

type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthNTLM
	AuthNegotiate
)

func (k AuthKind) String() string {
	switch k {
	case AuthBasic:
		return "basic"
	case AuthNTLM:
		return "ntlm"
	case AuthNegotiate:
		return "negotiate"
	default:
		return "none"
	}
}

// Authentication is a closed union; only the fields of Kind are meaningful.
// Realm is used by basic, Domain by ntlm and negotiate.
type Authentication struct {
	Kind     AuthKind
	Login    string
	Password string
	Domain   string
	Realm    string
}

type Server struct {
	Name   string
	Host   string
	Port   int
	Scheme Scheme
	Auth   Authentication
}

func (s *Server) TLS() bool {
	return s != nil && s.Scheme == SchemeHTTPS
}

func (s *Server) SameEndpoint(o *Server) bool {
	if s == nil || o == nil {
		return s == o
	}
	return strings.EqualFold(s.Host, o.Host) && s.Port == o.Port && s.Scheme == o.Scheme
}

func (s *Server) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s://%s:%d)", s.Name, s.Scheme, s.Host, s.Port)
}

type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodHead    HTTPMethod = "HEAD"
	MethodPut     HTTPMethod = "PUT"
	MethodDelete  HTTPMethod = "DELETE"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodTrace   HTTPMethod = "TRACE"
	MethodConnect HTTPMethod = "CONNECT"
	MethodPatch   HTTPMethod = "PATCH"
)

// ParseHTTPMethod matches the exact upper-case method name.
func ParseHTTPMethod(s string) (HTTPMethod, bool) {
	switch m := HTTPMethod(s); m {
	case MethodGet, MethodPost, MethodHead, MethodPut, MethodDelete,
		MethodOptions, MethodTrace, MethodConnect, MethodPatch:
		return m, true
	default:
		return MethodGet, false
	}
}

type Parameter struct {
	Name  string
	Value *string
}

func NewParameter(name, value string) Parameter {
	return Parameter{Name: name, Value: &value}
}

func (p Parameter) Equal(o Parameter) bool {
	if p.Name != o.Name {
		return false
	}
	if p.Value == nil || o.Value == nil {
		return p.Value == nil && o.Value == nil
	}
	return *p.Value == *o.Value
}

type Header struct {
	Name  string
	Value string
}

type ExtractorScope int

const (
	ScopeBody ExtractorScope = iota
	ScopeHeaders
	ScopeAll
)

func (s ExtractorScope) String() string {
	switch s {
	case ScopeHeaders:
		return "headers"
	case ScopeAll:
		return "all"
	default:
		return "body"
	}
}

type Extractor struct {
	Name            string
	StartExpression string
	EndExpression   string
	Occurrence      int
	ExitOnError     bool
	Scope           ExtractorScope
}

type Validator struct {
	Name          string
	Pattern       string
	HaveToContain bool
	Scope         ExtractorScope
}

// RecordedFiles holds paths of the recording artifacts. Empty means absent.
type RecordedFiles struct {
	RequestHeader  string
	RequestBody    string
	ResponseHeader string
	ResponseBody   string
}

func (r *RecordedFiles) Empty() bool {
	return r == nil || (r.RequestHeader == "" && r.RequestBody == "" &&
		r.ResponseHeader == "" && r.ResponseBody == "")
}

type RequestKind int

const (
	KindGetPlain RequestKind = iota
	KindGetFollowLink
	KindPostForm
	KindPostText
	KindPostBinary
)

func (k RequestKind) String() string {
	switch k {
	case KindGetPlain:
		return "get-plain"
	case KindGetFollowLink:
		return "get-follow-link"
	case KindPostForm:
		return "post-form"
	case KindPostText:
		return "post-text"
	case KindPostBinary:
		return "post-binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type FollowLink struct {
	Text string
}

type FormBody struct {
	ContentType string
	Parameters  []Parameter
}

type TextBody struct {
	ContentType string
	Data        string
}

type BinaryBody struct {
	ContentType string
	Data        []byte
}

type Request struct {
	Kind          RequestKind
	Name          string
	Path          string
	Server        *Server
	Method        HTTPMethod
	Parameters    []Parameter
	Headers       []Header
	Extractors    []Extractor
	Validators    []Validator
	RecordedFiles *RecordedFiles

	Link   *FollowLink
	Form   *FormBody
	Text   *TextBody
	Binary *BinaryBody
}

var (
	errPayloadMismatch = errors.New("payload does not match request kind")
	errMissingBinary   = errors.New("post-binary request without bytes")
)

// Validate checks that exactly the payload of Kind is set.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("nil request")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("request without name")
	}
	want := map[RequestKind]bool{
		KindGetFollowLink: r.Link != nil,
		KindPostForm:      r.Form != nil,
		KindPostText:      r.Text != nil,
		KindPostBinary:    r.Binary != nil,
	}
	for kind, set := range want {
		if set != (kind == r.Kind) {
			return fmt.Errorf("%s: %w", r.Kind, errPayloadMismatch)
		}
	}
	if r.Kind == KindPostBinary && r.Binary.Data == nil {
		return errMissingBinary
	}
	return nil
}

// ContentType returns the body content type for post variants.
func (r *Request) ContentType() string {
	switch {
	case r.Form != nil:
		return r.Form.ContentType
	case r.Text != nil:
		return r.Text.ContentType
	case r.Binary != nil:
		return r.Binary.ContentType
	default:
		return ""
	}
}

type Element interface {
	ElementName() string
}

type Page struct {
	Name      string
	ThinkTime time.Duration
	Children  []*Request
}

func (p *Page) ElementName() string { return p.Name }

type AddCookie struct {
	Name        string
	CookieName  string
	CookieValue string
	Domain      string
	Path        string
	Expires     string
}

func (c *AddCookie) ElementName() string { return c.Name }

type Container struct {
	Name     string
	Children []Element
}

func (c *Container) ElementName() string { return c.Name }

// Walk visits every element depth-first, containers before their children.
func (c *Container) Walk(fn func(Element)) {
	if c == nil {
		return
	}
	fn(c)
	for _, child := range c.Children {
		if sub, ok := child.(*Container); ok {
			sub.Walk(fn)
			continue
		}
		fn(child)
	}
}

type Project struct {
	Name      string
	Servers   []*Server
	UserPaths []*Container
}

type Stats struct {
	Containers int
	Pages      int
	Requests   int
	Cookies    int
}

func (p *Project) Stats() Stats {
	var st Stats
	if p == nil {
		return st
	}
	for _, up := range p.UserPaths {
		up.Walk(func(e Element) {
			switch v := e.(type) {
			case *Container:
				st.Containers++
			case *Page:
				st.Pages++
				st.Requests += len(v.Children)
			case *AddCookie:
				st.Cookies++
			}
		})
	}
	return st
}
