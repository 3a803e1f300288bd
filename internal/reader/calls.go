package reader

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

type callFn func(*walkState, lrscript.MethodCall)

var callDefs = map[string]callFn{
	"web_url":                  callURL,
	"web_submit_data":          callSubmitData,
	"web_custom_request":       callCustomRequest,
	"web_link":                 callFollowLink("Text"),
	"web_image":                callFollowLink("Src"),
	"web_submit_form":          callSubmitForm,
	"web_add_header":           callAddHeader,
	"web_add_auto_header":      callAddAutoHeader,
	"web_revert_auto_header":   callRevertAutoHeader,
	"web_cleanup_auto_headers": callCleanupAutoHeaders,
	"web_reg_save_param":       callSaveParam,
	"web_reg_save_param_ex":    callSaveParam,
	"web_reg_find":             callFind,
	"lr_think_time":            callThinkTime,
	"lr_start_transaction":     callStartTransaction,
	"lr_end_transaction":       callEndTransaction,
	"web_add_cookie":           callAddCookie,
	// runtime-only calls without a model counterpart
	"lr_output_message":          callIgnore,
	"lr_log_message":             callIgnore,
	"web_set_max_html_param_len": callIgnore,
	"web_set_sockets_option":     callIgnore,
}

const (
	paramURL            = "URL"
	paramAction         = "Action"
	paramMethod         = "Method"
	paramBody           = "Body"
	paramBodyBinary     = "BodyBinary"
	paramEncType        = "EncType"
	paramRecContentType = "RecContentType"
	paramText           = "Text"
	paramSearch         = "Search"
	paramScope          = "Scope"
	paramFail           = "Fail"
	paramOrd            = "Ord"
	paramNotFound       = "NotFound"
	paramLB             = "LB"
	paramRB             = "RB"
	paramName           = "ParamName"

	itemName  = "Name"
	itemValue = "Value"

	formURLEncoded = "application/x-www-form-urlencoded"
)

func callIgnore(st *walkState, call lrscript.MethodCall) {
	st.s.rep.Infof("%s: ignored", st.where(call))
}

// pageName is the first positional parameter, or the call name when the
// call starts with named parameters.
func (st *walkState) pageName(call lrscript.MethodCall) string {
	if len(call.Parameters) > 0 {
		first := st.s.syn.Normalize(call.Parameters[0])
		if first != "" && !strings.Contains(first, "=") && first != lrscript.MarkerLast {
			return first
		}
	}
	return call.Name
}

// urlParam resolves the URL held by the named parameter.
func (st *walkState) urlParam(call lrscript.MethodCall, name string) *url.URL {
	raw, ok := lrscript.FindNamed(call.Parameters, name)
	if !ok {
		st.errorf(call, "no %s parameter", name)
		return nil
	}
	candidate := lrscript.Unquote(raw)
	candidate = strings.TrimPrefix(candidate, `"`)
	if len(candidate) <= len(name) {
		st.errorf(call, "empty %s parameter", name)
		return nil
	}
	u, err := ResolveURL(st.s.syn, candidate[len(name)+1:])
	if err != nil {
		st.errorf(call, "%v", err)
		return nil
	}
	return u
}

func (st *walkState) method(call lrscript.MethodCall) project.HTTPMethod {
	v, ok := st.s.syn.Value(call.Parameters, paramMethod)
	if !ok {
		return project.MethodGet
	}
	m, ok := project.ParseHTTPMethod(v)
	if !ok {
		st.warnf(call, "unknown method %q, using GET", v)
	}
	return m
}

// extras builds one GET per EXTRARES item, resolved against base.
func (st *walkState) extras(call lrscript.MethodCall, base *url.URL) []*project.Request {
	section, ok := st.s.syn.Section(call.Parameters, lrscript.MarkerExtraRes)
	if !ok {
		return nil
	}
	report := func(format string, args ...any) { st.warnf(call, format, args...) }
	var out []*project.Request
	for _, u := range ExtraResourceURLs(section, base, st.s.items, report) {
		var req *project.Request
		req, st.pc = BuildPlainGet(st.pc, st.globals, st.s.serverFor(u), u, nil)
		out = append(out, req)
	}
	return out
}

// addPage validates the requests and appends a page holding them. The
// pending think time is used up by the page.
func (st *walkState) addPage(call lrscript.MethodCall, reqs ...*project.Request) {
	page := &project.Page{Name: st.pageName(call), ThinkTime: st.pc.ThinkTime}
	for _, req := range reqs {
		if err := req.Validate(); err != nil {
			st.errorf(call, "request %s dropped: %v", req.Name, err)
			continue
		}
		page.Children = append(page.Children, req)
	}
	st.pc.ThinkTime = 0
	st.add(page)
}

func callURL(st *walkState, call lrscript.MethodCall) {
	u := st.urlParam(call, paramURL)
	if u == nil {
		return
	}
	var main *project.Request
	main, st.pc = BuildPlainGet(st.pc, st.globals, st.s.serverFor(u), u, st.s.RecordedFiles(call))
	st.addPage(call, append([]*project.Request{main}, st.extras(call, u)...)...)
}

func callSubmitData(st *walkState, call lrscript.MethodCall) {
	u := st.urlParam(call, paramAction)
	if u == nil {
		return
	}
	method := st.method(call)
	fields := st.itemParameters(call)
	server := st.s.serverFor(u)
	rec := st.s.RecordedFiles(call)

	var main *project.Request
	if method == project.MethodGet {
		main, st.pc = BuildPlainGet(st.pc, st.globals, server, u, rec)
		main.Parameters = append(main.Parameters, fields...)
	} else {
		ct, ok := st.s.syn.Value(call.Parameters, paramEncType)
		if !ok || ct == "" {
			ct = formURLEncoded
		}
		body := postBody{form: &project.FormBody{ContentType: ct, Parameters: fields}}
		main, st.pc = buildPost(st.pc, st.globals, server, u, method, body, rec)
	}
	st.addPage(call, append([]*project.Request{main}, st.extras(call, u)...)...)
}

// itemParameters reads the Name/Value items of the ITEMDATA section.
func (st *walkState) itemParameters(call lrscript.MethodCall) []project.Parameter {
	section, ok := st.s.syn.Section(call.Parameters, lrscript.MarkerItemData)
	if !ok {
		return nil
	}
	var out []project.Parameter
	for _, item := range lrscript.SplitItems(section, st.s.items) {
		name, ok := item.Attribute(itemName)
		if !ok {
			st.warnf(call, "ITEMDATA item without Name (ignored)")
			continue
		}
		p := project.Parameter{Name: name}
		if v, ok := item.Attribute(itemValue); ok {
			p.Value = &v
		}
		out = append(out, p)
	}
	return out
}

func callCustomRequest(st *walkState, call lrscript.MethodCall) {
	u := st.urlParam(call, paramURL)
	if u == nil {
		return
	}
	method := st.method(call)
	server := st.s.serverFor(u)
	rec := st.s.RecordedFiles(call)
	ct, ok := st.s.syn.Value(call.Parameters, paramEncType)
	if !ok || ct == "" {
		ct, _ = st.s.syn.Value(call.Parameters, paramRecContentType)
	}

	var body postBody
	if v, ok := st.s.syn.Value(call.Parameters, paramBodyBinary); ok {
		body.binary = &project.BinaryBody{ContentType: ct, Data: lrscript.DecodeBinary(v)}
	} else if v, ok := st.s.syn.Value(call.Parameters, paramBody); ok {
		body.text = &project.TextBody{ContentType: ct, Data: v}
	}

	var main *project.Request
	if body.binary == nil && body.text == nil {
		main, st.pc = BuildPlainGet(st.pc, st.globals, server, u, rec)
		main.Method = method
		if p := rawPath(u); p != "" {
			main.Name = p
		}
	} else {
		main, st.pc = buildPost(st.pc, st.globals, server, u, method, body, rec)
	}
	st.addPage(call, append([]*project.Request{main}, st.extras(call, u)...)...)
}

func callFollowLink(attr string) callFn {
	return func(st *walkState, call lrscript.MethodCall) {
		text, ok := st.s.syn.Value(call.Parameters, attr)
		if !ok || text == "" {
			st.errorf(call, "no %s parameter", attr)
			return
		}
		var req *project.Request
		req, st.pc = BuildFollowLink(st.pc, st.globals, text)
		st.addPage(call, req)
	}
}

func callSubmitForm(st *walkState, call lrscript.MethodCall) {
	var req *project.Request
	req, st.pc = BuildFollowLink(st.pc, st.globals, st.pageName(call))
	st.addPage(call, req)
}

// headerArgs reads the two positional arguments of the header calls.
func (st *walkState) headerArgs(call lrscript.MethodCall) (project.Header, bool) {
	if len(call.Parameters) < 2 {
		st.errorf(call, "expected header name and value")
		return project.Header{}, false
	}
	return project.Header{
		Name:  st.s.syn.Normalize(call.Parameters[0]),
		Value: st.s.syn.Normalize(call.Parameters[1]),
	}, true
}

func callAddHeader(st *walkState, call lrscript.MethodCall) {
	if h, ok := st.headerArgs(call); ok {
		st.pc.Headers = append(st.pc.Headers, h)
	}
}

func callAddAutoHeader(st *walkState, call lrscript.MethodCall) {
	if h, ok := st.headerArgs(call); ok {
		st.globals = append(st.globals, h)
	}
}

func callRevertAutoHeader(st *walkState, call lrscript.MethodCall) {
	if len(call.Parameters) == 0 {
		st.errorf(call, "expected header name")
		return
	}
	name := st.s.syn.Normalize(call.Parameters[0])
	kept := st.globals[:0:0]
	for _, h := range st.globals {
		if !strings.EqualFold(h.Name, name) {
			kept = append(kept, h)
		}
	}
	st.globals = kept
}

func callCleanupAutoHeaders(st *walkState, _ lrscript.MethodCall) {
	st.globals = nil
}

func callSaveParam(st *walkState, call lrscript.MethodCall) {
	syn := st.s.syn
	name, ok := syn.Value(call.Parameters, paramName)
	if !ok && len(call.Parameters) > 0 {
		name = syn.Normalize(call.Parameters[0])
	}
	if name == "" {
		st.errorf(call, "extractor without name (ignored)")
		return
	}
	report := func(opt string) {
		st.errorf(call, "the option %q can not be taken into account", opt)
	}
	ex := project.Extractor{
		Name:        name,
		Occurrence:  1,
		ExitOnError: true,
		Scope:       st.scope(call),
	}
	if raw, ok := lrscript.FindBoundary(call.Parameters, paramLB); ok {
		ex.StartExpression = syn.BoundaryValue(raw, report)
	}
	if raw, ok := lrscript.FindBoundary(call.Parameters, paramRB); ok {
		ex.EndExpression = syn.BoundaryValue(raw, report)
	}
	if ord, ok := syn.Value(call.Parameters, paramOrd); ok {
		switch n, err := strconv.Atoi(ord); {
		case strings.EqualFold(ord, "ALL"):
			ex.Occurrence = 0
		case err == nil && n > 0:
			ex.Occurrence = n
		default:
			st.warnf(call, "invalid Ord %q, using 1", ord)
		}
	}
	if nf, ok := syn.Value(call.Parameters, paramNotFound); ok && strings.EqualFold(nf, "warning") {
		ex.ExitOnError = false
	}
	st.pc.Extractors = append(st.pc.Extractors, ex)
}

func callFind(st *walkState, call lrscript.MethodCall) {
	text, ok := st.s.syn.Value(call.Parameters, paramText)
	if !ok || text == "" {
		st.errorf(call, "no Text parameter (ignored)")
		return
	}
	fail, _ := st.s.syn.Value(call.Parameters, paramFail)
	st.pc.Validators = append(st.pc.Validators, project.Validator{
		Name:          "find " + text,
		Pattern:       text,
		HaveToContain: !strings.EqualFold(fail, "Found"),
		Scope:         st.scope(call),
	})
}

func (st *walkState) scope(call lrscript.MethodCall) project.ExtractorScope {
	v, ok := st.s.syn.Value(call.Parameters, paramSearch)
	if !ok {
		// web_reg_save_param_ex names the filter Scope
		v, _ = st.s.syn.Value(call.Parameters, paramScope)
	}
	switch strings.ToLower(v) {
	case "body":
		return project.ScopeBody
	case "headers":
		return project.ScopeHeaders
	default:
		return project.ScopeAll
	}
}

func callThinkTime(st *walkState, call lrscript.MethodCall) {
	if len(call.Parameters) == 0 {
		st.errorf(call, "missing think time")
		return
	}
	raw := st.s.syn.Normalize(call.Parameters[0])
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		st.warnf(call, "think time %q is not a number of seconds (ignored)", raw)
		return
	}
	st.pc.ThinkTime = time.Duration(secs * float64(time.Second))
}

func callStartTransaction(st *walkState, call lrscript.MethodCall) {
	if len(call.Parameters) == 0 {
		st.errorf(call, "transaction without name")
		return
	}
	c := &project.Container{Name: st.s.syn.Normalize(call.Parameters[0])}
	st.add(c)
	st.stack = append(st.stack, c)
}

func callEndTransaction(st *walkState, call lrscript.MethodCall) {
	if len(call.Parameters) == 0 {
		st.errorf(call, "transaction without name")
		return
	}
	name := st.s.syn.Normalize(call.Parameters[0])
	for i := len(st.stack) - 1; i > 0; i-- {
		if st.stack[i].Name != name {
			continue
		}
		if i != len(st.stack)-1 {
			st.warnf(call, "transaction %q ends before nested ones", name)
		}
		st.stack = st.stack[:i]
		return
	}
	st.warnf(call, "transaction %q was never started", name)
}

func callAddCookie(st *walkState, call lrscript.MethodCall) {
	if len(call.Parameters) == 0 {
		st.errorf(call, "missing cookie")
		return
	}
	c, ok := parseCookie(st.s.syn.Normalize(call.Parameters[0]))
	if !ok {
		st.errorf(call, "invalid cookie %q", call.Parameters[0])
		return
	}
	st.add(c)
}

// parseCookie reads "name=value; DOMAIN=d; PATH=/; EXPIRES=...".
func parseCookie(s string) (*project.AddCookie, bool) {
	parts := strings.Split(s, ";")
	name, value, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, false
	}
	c := &project.AddCookie{
		Name:        "cookie " + name,
		CookieName:  name,
		CookieValue: strings.TrimSpace(value),
	}
	for _, attr := range parts[1:] {
		k, v, _ := strings.Cut(strings.TrimSpace(attr), "=")
		v = strings.TrimSpace(v)
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "domain":
			c.Domain = v
		case "path":
			c.Path = v
		case "expires":
			c.Expires = v
		}
	}
	return c, true
}
