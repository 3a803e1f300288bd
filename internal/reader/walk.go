package reader

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

// walkState is the mutable state of one script traversal.
type walkState struct {
	s       *Session
	script  string
	pc      PageContext
	globals []project.Header
	stack   []*project.Container
}

func (st *walkState) top() *project.Container {
	return st.stack[len(st.stack)-1]
}

func (st *walkState) add(e project.Element) {
	top := st.top()
	top.Children = append(top.Children, e)
}

func (st *walkState) where(call lrscript.MethodCall) string {
	if call.Line > 0 {
		return fmt.Sprintf("%s:%d %s", st.script, call.Line, call.Name)
	}
	return fmt.Sprintf("%s %s", st.script, call.Name)
}

func (st *walkState) warnf(call lrscript.MethodCall, format string, args ...any) {
	st.s.rep.Warnf("%s: %s", st.where(call), fmt.Sprintf(format, args...))
}

func (st *walkState) errorf(call lrscript.MethodCall, format string, args ...any) {
	st.s.rep.Errorf("%s: %s", st.where(call), fmt.Sprintf(format, args...))
}

// ReadScript converts the calls of one script, in order, into a container
// named after the script. Per-call problems are reported through the
// session reporter; only cancellation aborts the traversal.
func (s *Session) ReadScript(ctx context.Context, name string, calls []lrscript.MethodCall) (*project.Container, error) {
	root := &project.Container{Name: name}
	st := &walkState{s: s, script: name, stack: []*project.Container{root}}
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fn, ok := callDefs[call.Name]
		if !ok {
			st.warnf(call, "unsupported call (ignored)")
			continue
		}
		fn(st, call)
	}
	for len(st.stack) > 1 {
		open := st.top()
		s.rep.Warnf("%s: transaction %q never ended", name, open.Name)
		st.stack = st.stack[:len(st.stack)-1]
	}
	return root, nil
}
