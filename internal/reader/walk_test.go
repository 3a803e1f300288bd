package reader

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/lrconv/internal/diag"
	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

func call(name string, params ...string) lrscript.MethodCall {
	return lrscript.MethodCall{Name: name, Parameters: params}
}

func readCalls(t *testing.T, s *Session, calls ...lrscript.MethodCall) *project.Container {
	t.Helper()
	root, err := s.ReadScript(context.Background(), "Action", calls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return root
}

func onlyPage(t *testing.T, c *project.Container) *project.Page {
	t.Helper()
	if len(c.Children) != 1 {
		t.Fatalf("expected exactly one element, got %d", len(c.Children))
	}
	page, ok := c.Children[0].(*project.Page)
	if !ok {
		t.Fatalf("expected a page, got %T", c.Children[0])
	}
	return page
}

func TestReadScriptCustomRequestPostText(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{})
	root := readCalls(t, s, call("web_custom_request",
		"URL=https://server.test.com/test/path?Arg=value%204",
		"Method=POST",
		"ITEMDATA",
		"EncType=application/x-www-form-urlencoded;charset=utf-8",
		"Body=Hello World",
		"LAST",
	))

	page := onlyPage(t, root)
	if len(page.Children) != 1 {
		t.Fatalf("expected one request, got %d", len(page.Children))
	}
	req := page.Children[0]
	if req.Kind != project.KindPostText || req.Text == nil {
		t.Fatalf("expected a post-text request, got %v", req.Kind)
	}
	if req.Path != "/test/path" || req.Method != project.MethodPost {
		t.Fatalf("unexpected path/method %q %v", req.Path, req.Method)
	}
	if len(req.Parameters) != 1 || !req.Parameters[0].Equal(project.NewParameter("Arg", "value 4")) {
		t.Fatalf("unexpected parameters %#v", req.Parameters)
	}
	if req.ContentType() != "application/x-www-form-urlencoded;charset=utf-8" {
		t.Fatalf("unexpected content type %q", req.ContentType())
	}
	if req.Text.Data != "Hello World" {
		t.Fatalf("unexpected body %q", req.Text.Data)
	}
	if req.Server == nil || req.Server.Name != "server.test.com" || req.Server.Port != 443 {
		t.Fatalf("unexpected server %+v", req.Server)
	}
}

func customDataCall(body string) lrscript.MethodCall {
	return call("web_custom_request",
		`"test_web_custom_data"`,
		`"URL=https://server.test.com/test/path?ArgWithValue2=value%204"`,
		`"Method=POST"`,
		`"Resource=0"`,
		`"RecContentType=application/json"`,
		`"Referer=referer_test"`,
		`"Snapshot=tX.inf"`,
		`"Mode=HTML"`,
		"ITEMDATA",
		`"EncType=application/x-www-form-urlencoded;charset=utf-8"`,
		body,
		"LAST",
	)
}

func TestReadScriptCustomRequestBinary(t *testing.T) {
	t.Parallel()

	rep := diag.New(nil)
	s := NewSession(Options{ProjectDir: t.TempDir(), Reporter: rep})
	root := readCalls(t, s, customDataCall(`"BodyBinary=\\x74\\x65\\x78\\x74\\x65\\x20\\x61 convertir en bin\\x61\\x69re"`))

	page := onlyPage(t, root)
	if page.Name != "test_web_custom_data" || page.ThinkTime != 0 {
		t.Fatalf("unexpected page %q %v", page.Name, page.ThinkTime)
	}
	req := page.Children[0]
	if req.Kind != project.KindPostBinary || req.Text != nil {
		t.Fatalf("expected binary request, got %v", req.Kind)
	}
	if got := base64.StdEncoding.EncodeToString(req.Binary.Data); got != "dGV4dGUgYSBjb252ZXJ0aXIgZW4gYmluYWlyZQ==" {
		t.Fatalf("unexpected binary data %q", got)
	}
	if req.RecordedFiles != nil {
		t.Fatalf("missing snapshot must degrade to no recorded files")
	}
	if len(rep.Warnings()) != 1 {
		t.Fatalf("expected one warning for the missing snapshot, got %v", rep.Warnings())
	}
}

func TestReadScriptCustomRequestText(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{ProjectDir: t.TempDir()})
	root := readCalls(t, s, customDataCall(`"Body=Texte du body à tester"`))

	req := onlyPage(t, root).Children[0]
	if req.Kind != project.KindPostText || req.Name != "/test/path" {
		t.Fatalf("unexpected request %v %q", req.Kind, req.Name)
	}
	if req.Text.Data != "Texte du body à tester" {
		t.Fatalf("unexpected body %q", req.Text.Data)
	}
	if req.ContentType() != "application/x-www-form-urlencoded;charset=utf-8" {
		t.Fatalf("EncType must win over RecContentType, got %q", req.ContentType())
	}
	if len(req.Parameters) != 1 || req.Parameters[0].Name != "ArgWithValue2" || *req.Parameters[0].Value != "value 4" {
		t.Fatalf("unexpected parameters %#v", req.Parameters)
	}
}

func TestReadScriptCustomRequestWithoutBody(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{})
	root := readCalls(t, s, call("web_custom_request", `"del"`,
		`"URL=https://server.test.com/items/1"`, `"Method=DELETE"`,
		`"RecContentType=application/json"`, "LAST"))

	req := onlyPage(t, root).Children[0]
	if req.Kind != project.KindGetPlain || req.Method != project.MethodDelete {
		t.Fatalf("unexpected request %v %v", req.Kind, req.Method)
	}
	if req.Name != "/items/1" {
		t.Fatalf("unexpected name %q", req.Name)
	}
}

func TestReadScriptWebURLAttachesContext(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{})
	root := readCalls(t, s,
		call("web_add_auto_header", `"Accept-Language"`, `"en"`),
		call("web_add_header", `"X-Page"`, `"1"`),
		call("web_reg_save_param", `"token"`, `"LB=token=\""`, `"RB=\""`, `"Ord=2"`, `"Search=Body"`, "LAST"),
		call("web_reg_find", `"Text=Welcome"`, "LAST"),
		call("lr_think_time", "2.5"),
		call("web_url", `"home"`,
			`"URL=https://server.test.com/index.html?x=1"`,
			`"Resource=0"`,
			"EXTRARES",
			`"Url=/style.css"`, "ENDITEM",
			`"Url=https://cdn.test.com/app.js"`, "ENDITEM",
			"LAST"),
		call("web_url", `"next"`, `"URL=https://server.test.com/next"`, "LAST"),
	)

	if len(root.Children) != 2 {
		t.Fatalf("expected two pages, got %d", len(root.Children))
	}
	home := root.Children[0].(*project.Page)
	if home.Name != "home" || home.ThinkTime != 2500*time.Millisecond {
		t.Fatalf("unexpected page %q %v", home.Name, home.ThinkTime)
	}
	if len(home.Children) != 3 {
		t.Fatalf("expected main request plus two resources, got %d", len(home.Children))
	}

	main := home.Children[0]
	if len(main.Headers) != 2 || main.Headers[0].Name != "X-Page" || main.Headers[1].Name != "Accept-Language" {
		t.Fatalf("unexpected main headers %#v", main.Headers)
	}
	if len(main.Extractors) != 1 {
		t.Fatalf("expected one extractor, got %#v", main.Extractors)
	}
	ex := main.Extractors[0]
	if ex.Name != "token" || ex.StartExpression != `token="` || ex.EndExpression != `"` || ex.Occurrence != 2 || ex.Scope != project.ScopeBody {
		t.Fatalf("unexpected extractor %+v", ex)
	}
	if len(main.Validators) != 1 || main.Validators[0].Pattern != "Welcome" || !main.Validators[0].HaveToContain {
		t.Fatalf("unexpected validators %#v", main.Validators)
	}

	for _, extra := range home.Children[1:] {
		if len(extra.Headers) != 1 || extra.Headers[0].Name != "Accept-Language" {
			t.Fatalf("extra resources only carry global headers, got %#v", extra.Headers)
		}
		if len(extra.Extractors) != 0 || len(extra.Validators) != 0 {
			t.Fatalf("extractors and validators belong to the main request")
		}
	}
	if home.Children[1].Path != "/style.css" || home.Children[2].Server.Host != "cdn.test.com" {
		t.Fatalf("unexpected extra resources")
	}

	next := root.Children[1].(*project.Page)
	if next.ThinkTime != 0 {
		t.Fatalf("think time must be used up by the first page")
	}
	if len(s.Servers()) != 2 {
		t.Fatalf("expected two distinct servers, got %d", len(s.Servers()))
	}
	if next.Children[0].Server != main.Server {
		t.Fatalf("requests to the same host must share the server")
	}
}

func TestReadScriptRestrictedBoundary(t *testing.T) {
	t.Parallel()

	rep := diag.New(nil)
	s := NewSession(Options{Reporter: rep})
	root := readCalls(t, s,
		call("web_reg_save_param_ex", `"ParamName=sid"`, `"LB/BIN=sid="`, `"RB/DIG=;"`, `"NotFound=warning"`, "LAST"),
		call("web_url", `"p"`, `"URL=http://server.test.com/"`, "LAST"),
	)
	ex := onlyPage(t, root).Children[0].Extractors[0]
	if ex.Name != "sid" || ex.StartExpression != "sid=" || ex.EndExpression != ";" || ex.ExitOnError {
		t.Fatalf("unexpected extractor %+v", ex)
	}
	if errs := rep.Errors(); len(errs) != 2 {
		t.Fatalf("expected the BIN and DIG options reported, got %v", errs)
	}
}

func TestReadScriptBoundaryKeywordsNeedDelimiter(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{})
	root := readCalls(t, s,
		call("web_reg_save_param", `"lbToken"`, `"LB=start"`, `"RB=end"`, "LAST"),
		call("web_reg_save_param", `"rbac"`, `"lb/IC=start"`, `"RB=end"`, "LAST"),
		call("web_url", `"p"`, `"URL=http://server.test.com/"`, "LAST"),
	)
	exs := onlyPage(t, root).Children[0].Extractors
	if len(exs) != 2 {
		t.Fatalf("expected two extractors, got %+v", exs)
	}
	for _, ex := range exs {
		if ex.StartExpression != "start" || ex.EndExpression != "end" {
			t.Fatalf("boundary taken from the wrong parameter: %+v", ex)
		}
	}
	if exs[0].Name != "lbToken" || exs[1].Name != "rbac" {
		t.Fatalf("unexpected names %q %q", exs[0].Name, exs[1].Name)
	}
}

func TestReadScriptSaveParamExScope(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{})
	root := readCalls(t, s,
		call("web_reg_save_param_ex", `"ParamName=a"`, `"LB=x"`, `"RB=y"`, `"Scope=Body"`, "LAST"),
		call("web_reg_save_param_ex", `"ParamName=b"`, `"LB=x"`, `"RB=y"`, `"Scope=Headers"`, "LAST"),
		call("web_reg_save_param_ex", `"ParamName=c"`, `"LB=x"`, `"RB=y"`, "LAST"),
		call("web_url", `"p"`, `"URL=http://server.test.com/"`, "LAST"),
	)
	exs := onlyPage(t, root).Children[0].Extractors
	want := []project.ExtractorScope{project.ScopeBody, project.ScopeHeaders, project.ScopeAll}
	if len(exs) != len(want) {
		t.Fatalf("expected %d extractors, got %+v", len(want), exs)
	}
	for i, ex := range exs {
		if ex.Scope != want[i] {
			t.Fatalf("extractor %s: scope %s, want %s", ex.Name, ex.Scope, want[i])
		}
	}
}

func TestReadScriptSubmitData(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{})
	root := readCalls(t, s,
		call("web_submit_data", `"login"`,
			`"Action=https://server.test.com/login"`,
			`"Method=POST"`,
			"ITEMDATA",
			`"Name=user"`, `"Value=joe"`, "ENDITEM",
			`"Name=pass"`, `"Value={pwd}"`, "ENDITEM",
			`"Name=remember"`, "ENDITEM",
			"LAST"),
		call("web_submit_data", `"search"`,
			`"Action=https://server.test.com/search?lang=en"`,
			"ITEMDATA",
			`"Name=q"`, `"Value=go"`, "ENDITEM",
			"LAST"),
	)

	post := root.Children[0].(*project.Page).Children[0]
	if post.Kind != project.KindPostForm || post.Form.ContentType != formURLEncoded {
		t.Fatalf("unexpected post %v %#v", post.Kind, post.Form)
	}
	fields := post.Form.Parameters
	if len(fields) != 3 || *fields[1].Value != "${pwd}" || fields[2].Value != nil {
		t.Fatalf("unexpected form fields %#v", fields)
	}

	get := root.Children[1].(*project.Page).Children[0]
	if get.Kind != project.KindGetPlain || len(get.Parameters) != 2 {
		t.Fatalf("unexpected get %v %#v", get.Kind, get.Parameters)
	}
	if get.Parameters[0].Name != "lang" || get.Parameters[1].Name != "q" {
		t.Fatalf("query parameters must precede item parameters: %#v", get.Parameters)
	}
}

func TestReadScriptTransactionsAndLinks(t *testing.T) {
	t.Parallel()

	rep := diag.New(nil)
	s := NewSession(Options{Reporter: rep})
	root := readCalls(t, s,
		call("lr_start_transaction", `"login"`),
		call("web_link", `"Home"`, `"Text=Home"`, "LAST"),
		call("lr_start_transaction", `"inner"`),
		call("web_image", `"logo"`, `"Src=/logo.png"`, "LAST"),
		call("lr_end_transaction", `"inner"`, "LR_AUTO"),
		call("web_submit_form", `"form1"`, "ITEMDATA", "LAST"),
		call("lr_end_transaction", `"login"`, "LR_AUTO"),
		call("lr_end_transaction", `"ghost"`, "LR_AUTO"),
		call("web_add_cookie", `"sid=abc; DOMAIN=server.test.com; PATH=/"`),
		call("lr_start_transaction", `"open"`),
	)

	if len(root.Children) != 3 {
		t.Fatalf("expected login, cookie and open containers, got %d", len(root.Children))
	}
	login := root.Children[0].(*project.Container)
	if login.Name != "login" || len(login.Children) != 3 {
		t.Fatalf("unexpected login container %+v", login)
	}
	inner := login.Children[1].(*project.Container)
	link := inner.Children[0].(*project.Page).Children[0]
	if link.Kind != project.KindGetFollowLink || link.Link.Text != "/logo.png" {
		t.Fatalf("unexpected image link %+v", link)
	}
	form := login.Children[2].(*project.Page)
	if form.Children[0].Link.Text != "form1" {
		t.Fatalf("unexpected form link %+v", form.Children[0].Link)
	}

	cookie := root.Children[1].(*project.AddCookie)
	if cookie.CookieName != "sid" || cookie.CookieValue != "abc" || cookie.Domain != "server.test.com" || cookie.Path != "/" {
		t.Fatalf("unexpected cookie %+v", cookie)
	}

	st := (&project.Project{UserPaths: []*project.Container{root}}).Stats()
	if st.Containers != 4 || st.Pages != 3 || st.Requests != 3 || st.Cookies != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	var ghost, open bool
	for _, w := range rep.Warnings() {
		ghost = ghost || strings.Contains(w, `"ghost" was never started`)
		open = open || strings.Contains(w, `"open" never ended`)
	}
	if !ghost || !open {
		t.Fatalf("expected transaction warnings, got %v", rep.Warnings())
	}
}

func TestReadScriptHeaders(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{})
	root := readCalls(t, s,
		call("web_add_auto_header", `"A"`, `"1"`),
		call("web_add_auto_header", `"B"`, `"2"`),
		call("web_revert_auto_header", `"a"`),
		call("web_link", `"l1"`, `"Text=one"`, "LAST"),
		call("web_cleanup_auto_headers", "LAST"),
		call("web_link", `"l2"`, `"Text=two"`, "LAST"),
	)
	first := root.Children[0].(*project.Page).Children[0]
	if len(first.Headers) != 1 || first.Headers[0].Name != "B" {
		t.Fatalf("unexpected headers after revert %#v", first.Headers)
	}
	second := root.Children[1].(*project.Page).Children[0]
	if len(second.Headers) != 0 {
		t.Fatalf("expected no headers after cleanup, got %#v", second.Headers)
	}
}

func TestReadScriptReportsBadCalls(t *testing.T) {
	t.Parallel()

	rep := diag.New(nil)
	s := NewSession(Options{Reporter: rep})
	root := readCalls(t, s,
		call("lr_eval_string", `"{x}"`),
		call("web_url", `"nourl"`, `"Resource=0"`, "LAST"),
		call("web_url", `"bad"`, `"URL=ftp://files.test.com/"`, "LAST"),
		call("lr_think_time", "{delay}"),
		call("lr_output_message", `"hello"`),
		lrscript.MethodCall{Name: "web_link", Parameters: []string{`"x"`}, Line: 12},
	)
	if len(root.Children) != 0 {
		t.Fatalf("expected nothing converted, got %d elements", len(root.Children))
	}
	if len(rep.Warnings()) != 2 {
		t.Fatalf("expected unsupported call and think time warnings, got %v", rep.Warnings())
	}
	errs := rep.Errors()
	if len(errs) != 3 {
		t.Fatalf("expected three errors, got %v", errs)
	}
	var located bool
	for _, e := range errs {
		located = located || strings.HasPrefix(e, "Action:12 web_link")
	}
	if !located {
		t.Fatalf("expected line information in %v", errs)
	}
}

func TestReadScriptCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSession(Options{})
	_, err := s.ReadScript(ctx, "Action", []lrscript.MethodCall{call("web_url", `"URL=http://x.test/"`)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSessionSharesServersAcrossScripts(t *testing.T) {
	t.Parallel()

	s := NewSession(Options{})
	a := readCalls(t, s, call("web_url", `"a"`, `"URL=https://server.test.com/a"`, "LAST"))
	b := readCalls(t, s, call("web_url", `"b"`, `"URL=https://server.test.com/b"`, "LAST"))
	p := s.Project("demo", a, b)
	if len(p.Servers) != 1 || len(p.UserPaths) != 2 {
		t.Fatalf("unexpected project %d servers, %d paths", len(p.Servers), len(p.UserPaths))
	}
}
