package projectwriter

import (
	"encoding/base64"
	"time"

	"github.com/unkn0wn-root/lrconv/internal/project"
)

// The document types fix the field order and names of the dump. Server
// entries use the keys accepted by the server definition decoder.

type document struct {
	Project   string         `yaml:"project"              json:"project"`
	Servers   []serverDoc    `yaml:"servers,omitempty"    json:"servers,omitempty"`
	UserPaths []containerDoc `yaml:"user_paths,omitempty" json:"user_paths,omitempty"`
}

type serverDoc struct {
	Name      string   `yaml:"name"                               json:"name"`
	Host      string   `yaml:"host"                               json:"host"`
	Port      int      `yaml:"port"                               json:"port"`
	Scheme    string   `yaml:"scheme"                             json:"scheme"`
	SSL       bool     `yaml:"ssl,omitempty"                      json:"ssl,omitempty"`
	Basic     *authDoc `yaml:"basic_authentication,omitempty"     json:"basic_authentication,omitempty"`
	NTLM      *authDoc `yaml:"ntlm_authentication,omitempty"      json:"ntlm_authentication,omitempty"`
	Negotiate *authDoc `yaml:"negotiate_authentication,omitempty" json:"negotiate_authentication,omitempty"`
}

type authDoc struct {
	Login    string `yaml:"login"            json:"login"`
	Password string `yaml:"password"         json:"password"`
	Domain   string `yaml:"domain,omitempty" json:"domain,omitempty"`
	Realm    string `yaml:"realm,omitempty"  json:"realm,omitempty"`
}

type containerDoc struct {
	Name     string       `yaml:"name"               json:"name"`
	Elements []elementDoc `yaml:"elements,omitempty" json:"elements,omitempty"`
}

// elementDoc carries exactly one of its fields.
type elementDoc struct {
	Page      *pageDoc      `yaml:"page,omitempty"      json:"page,omitempty"`
	Container *containerDoc `yaml:"container,omitempty" json:"container,omitempty"`
	Cookie    *cookieDoc    `yaml:"cookie,omitempty"    json:"cookie,omitempty"`
}

type pageDoc struct {
	Name      string       `yaml:"name"                 json:"name"`
	ThinkTime string       `yaml:"think_time,omitempty" json:"think_time,omitempty"`
	Requests  []requestDoc `yaml:"requests,omitempty"   json:"requests,omitempty"`
}

type cookieDoc struct {
	Name    string `yaml:"name"              json:"name"`
	Cookie  string `yaml:"cookie"            json:"cookie"`
	Value   string `yaml:"value"             json:"value"`
	Domain  string `yaml:"domain,omitempty"  json:"domain,omitempty"`
	Path    string `yaml:"path,omitempty"    json:"path,omitempty"`
	Expires string `yaml:"expires,omitempty" json:"expires,omitempty"`
}

type requestDoc struct {
	Name       string         `yaml:"name"                  json:"name"`
	Kind       string         `yaml:"kind"                  json:"kind"`
	Method     string         `yaml:"method"                json:"method"`
	Server     string         `yaml:"server,omitempty"      json:"server,omitempty"`
	Path       string         `yaml:"path,omitempty"        json:"path,omitempty"`
	FollowLink string         `yaml:"follow_link,omitempty" json:"follow_link,omitempty"`
	Parameters []parameterDoc `yaml:"parameters,omitempty"  json:"parameters,omitempty"`
	Headers    []headerDoc    `yaml:"headers,omitempty"     json:"headers,omitempty"`
	Body       *bodyDoc       `yaml:"body,omitempty"        json:"body,omitempty"`
	Extractors []extractorDoc `yaml:"extractors,omitempty"  json:"extractors,omitempty"`
	Validators []validatorDoc `yaml:"validators,omitempty"  json:"validators,omitempty"`
	Recorded   *recordedDoc   `yaml:"recorded,omitempty"    json:"recorded,omitempty"`
}

type parameterDoc struct {
	Name  string  `yaml:"name"            json:"name"`
	Value *string `yaml:"value,omitempty" json:"value,omitempty"`
}

type headerDoc struct {
	Name  string `yaml:"name"  json:"name"`
	Value string `yaml:"value" json:"value"`
}

// bodyDoc holds form parameters, text, or base64 encoded bytes.
type bodyDoc struct {
	ContentType string         `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Form        []parameterDoc `yaml:"form,omitempty"         json:"form,omitempty"`
	Text        *string        `yaml:"text,omitempty"         json:"text,omitempty"`
	Base64      *string        `yaml:"base64,omitempty"       json:"base64,omitempty"`
}

type extractorDoc struct {
	Name        string `yaml:"name"          json:"name"`
	Start       string `yaml:"start"         json:"start"`
	End         string `yaml:"end"           json:"end"`
	Occurrence  int    `yaml:"occurrence"    json:"occurrence"`
	ExitOnError bool   `yaml:"exit_on_error" json:"exit_on_error"`
	Scope       string `yaml:"scope"         json:"scope"`
}

type validatorDoc struct {
	Name          string `yaml:"name"            json:"name"`
	Pattern       string `yaml:"pattern"         json:"pattern"`
	HaveToContain bool   `yaml:"have_to_contain" json:"have_to_contain"`
	Scope         string `yaml:"scope"           json:"scope"`
}

type recordedDoc struct {
	RequestHeader  string `yaml:"request_header,omitempty"  json:"request_header,omitempty"`
	RequestBody    string `yaml:"request_body,omitempty"    json:"request_body,omitempty"`
	ResponseHeader string `yaml:"response_header,omitempty" json:"response_header,omitempty"`
	ResponseBody   string `yaml:"response_body,omitempty"   json:"response_body,omitempty"`
}

func buildDocument(p *project.Project) document {
	doc := document{Project: p.Name}
	for _, srv := range p.Servers {
		if srv == nil {
			continue
		}
		doc.Servers = append(doc.Servers, buildServer(srv))
	}
	for _, up := range p.UserPaths {
		if up == nil {
			continue
		}
		doc.UserPaths = append(doc.UserPaths, buildContainer(up))
	}
	return doc
}

func buildServer(srv *project.Server) serverDoc {
	out := serverDoc{
		Name:   srv.Name,
		Host:   srv.Host,
		Port:   srv.Port,
		Scheme: srv.Scheme.String(),
		SSL:    srv.TLS(),
	}
	auth := &authDoc{
		Login:    srv.Auth.Login,
		Password: srv.Auth.Password,
		Domain:   srv.Auth.Domain,
		Realm:    srv.Auth.Realm,
	}
	switch srv.Auth.Kind {
	case project.AuthBasic:
		auth.Domain = ""
		out.Basic = auth
	case project.AuthNTLM:
		auth.Realm = ""
		out.NTLM = auth
	case project.AuthNegotiate:
		auth.Realm = ""
		out.Negotiate = auth
	}
	return out
}

func buildContainer(c *project.Container) containerDoc {
	out := containerDoc{Name: c.Name}
	for _, child := range c.Children {
		switch v := child.(type) {
		case *project.Page:
			out.Elements = append(out.Elements, elementDoc{Page: buildPage(v)})
		case *project.Container:
			sub := buildContainer(v)
			out.Elements = append(out.Elements, elementDoc{Container: &sub})
		case *project.AddCookie:
			out.Elements = append(out.Elements, elementDoc{Cookie: &cookieDoc{
				Name:    v.Name,
				Cookie:  v.CookieName,
				Value:   v.CookieValue,
				Domain:  v.Domain,
				Path:    v.Path,
				Expires: v.Expires,
			}})
		}
	}
	return out
}

func buildPage(p *project.Page) *pageDoc {
	out := &pageDoc{Name: p.Name, ThinkTime: formatThinkTime(p.ThinkTime)}
	for _, req := range p.Children {
		if req == nil {
			continue
		}
		out.Requests = append(out.Requests, buildRequest(req))
	}
	return out
}

func formatThinkTime(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.String()
}

func buildRequest(req *project.Request) requestDoc {
	out := requestDoc{
		Name:       req.Name,
		Kind:       req.Kind.String(),
		Method:     string(req.Method),
		Path:       req.Path,
		Parameters: buildParameters(req.Parameters),
	}
	if req.Server != nil {
		out.Server = req.Server.Name
	}
	if req.Link != nil {
		out.FollowLink = req.Link.Text
	}
	for _, h := range req.Headers {
		out.Headers = append(out.Headers, headerDoc{Name: h.Name, Value: h.Value})
	}
	switch {
	case req.Form != nil:
		out.Body = &bodyDoc{ContentType: req.Form.ContentType, Form: buildParameters(req.Form.Parameters)}
	case req.Text != nil:
		text := req.Text.Data
		out.Body = &bodyDoc{ContentType: req.Text.ContentType, Text: &text}
	case req.Binary != nil:
		encoded := base64.StdEncoding.EncodeToString(req.Binary.Data)
		out.Body = &bodyDoc{ContentType: req.Binary.ContentType, Base64: &encoded}
	}
	for _, ex := range req.Extractors {
		out.Extractors = append(out.Extractors, extractorDoc{
			Name:        ex.Name,
			Start:       ex.StartExpression,
			End:         ex.EndExpression,
			Occurrence:  ex.Occurrence,
			ExitOnError: ex.ExitOnError,
			Scope:       ex.Scope.String(),
		})
	}
	for _, v := range req.Validators {
		out.Validators = append(out.Validators, validatorDoc{
			Name:          v.Name,
			Pattern:       v.Pattern,
			HaveToContain: v.HaveToContain,
			Scope:         v.Scope.String(),
		})
	}
	if !req.RecordedFiles.Empty() {
		rec := req.RecordedFiles
		out.Recorded = &recordedDoc{
			RequestHeader:  rec.RequestHeader,
			RequestBody:    rec.RequestBody,
			ResponseHeader: rec.ResponseHeader,
			ResponseBody:   rec.ResponseBody,
		}
	}
	return out
}

func buildParameters(params []project.Parameter) []parameterDoc {
	if len(params) == 0 {
		return nil
	}
	out := make([]parameterDoc, 0, len(params))
	for _, p := range params {
		doc := parameterDoc{Name: p.Name}
		if p.Value != nil {
			v := *p.Value
			doc.Value = &v
		}
		out = append(out, doc)
	}
	return out
}
