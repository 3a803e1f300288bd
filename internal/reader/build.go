package reader

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

// PageContext is what preceding calls leave for the next request: page
// headers, extractors, validators and the think time of the next page.
type PageContext struct {
	Headers    []project.Header
	Extractors []project.Extractor
	Validators []project.Validator
	ThinkTime  time.Duration
}

// consume hands the pending attachments to one request and returns the
// context left for the following one.
func (pc PageContext) consume(req *project.Request, globals []project.Header) PageContext {
	req.Extractors = append(req.Extractors, pc.Extractors...)
	req.Validators = append(req.Validators, pc.Validators...)
	req.Headers = append(req.Headers, pc.Headers...)
	req.Headers = append(req.Headers, globals...)
	return PageContext{ThinkTime: pc.ThinkTime}
}

// BuildPlainGet builds a GET for u. The request name is random; only its
// uniqueness under a page matters.
func BuildPlainGet(pc PageContext, globals []project.Header, server *project.Server, u *url.URL, rec *project.RecordedFiles) (*project.Request, PageContext) {
	req := &project.Request{
		Kind:          project.KindGetPlain,
		Name:          uuid.NewString(),
		Path:          rawPath(u),
		Server:        server,
		Method:        project.MethodGet,
		RecordedFiles: rec,
	}
	next := pc.consume(req, globals)
	req.Parameters = lrscript.QueryParameters(u.RawQuery)
	return req, next
}

// BuildFollowLink builds a GET that follows the link labelled text on the
// current page.
func BuildFollowLink(pc PageContext, globals []project.Header, text string) (*project.Request, PageContext) {
	req := &project.Request{
		Kind:   project.KindGetFollowLink,
		Name:   uuid.NewString(),
		Method: project.MethodGet,
		Link:   &project.FollowLink{Text: text},
	}
	return req, pc.consume(req, globals)
}

// postBody carries the payload of a POST-like request; exactly one of the
// fields is set.
type postBody struct {
	form   *project.FormBody
	text   *project.TextBody
	binary *project.BinaryBody
}

func buildPost(pc PageContext, globals []project.Header, server *project.Server, u *url.URL, method project.HTTPMethod, body postBody, rec *project.RecordedFiles) (*project.Request, PageContext) {
	path := rawPath(u)
	req := &project.Request{
		Name:          path,
		Path:          path,
		Server:        server,
		Method:        method,
		RecordedFiles: rec,
		Form:          body.form,
		Text:          body.text,
		Binary:        body.binary,
	}
	switch {
	case body.form != nil:
		req.Kind = project.KindPostForm
	case body.binary != nil:
		req.Kind = project.KindPostBinary
	default:
		req.Kind = project.KindPostText
	}
	if req.Name == "" {
		req.Name = uuid.NewString()
	}
	next := pc.consume(req, globals)
	req.Parameters = lrscript.QueryParameters(u.RawQuery)
	return req, next
}
