// Package reader turns the call sites of recorded scripts into the project
// model. A Session owns the server registry and is meant to be used by a
// single traversal at a time.
package reader

import (
	"github.com/unkn0wn-root/lrconv/internal/diag"
	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

type Options struct {
	Syntax lrscript.Syntax
	// ProjectDir is the recorded project folder; snapshot metadata is read
	// from its data/ directory.
	ProjectDir string
	Items      lrscript.ItemOptions
	Reporter   *diag.Reporter
}

type Session struct {
	syn        lrscript.Syntax
	projectDir string
	items      lrscript.ItemOptions
	rep        *diag.Reporter
	servers    *ServerRegistry
}

func NewSession(opts Options) *Session {
	rep := opts.Reporter
	if rep == nil {
		rep = diag.Discard()
	}
	return &Session{
		syn:        opts.Syntax,
		projectDir: opts.ProjectDir,
		items:      opts.Items,
		rep:        rep,
		servers:    NewServerRegistry(),
	}
}

func (s *Session) Syntax() lrscript.Syntax {
	return s.syn
}

func (s *Session) Reporter() *diag.Reporter {
	return s.rep
}

func (s *Session) Registry() *ServerRegistry {
	return s.servers
}

// Servers returns the registered servers in registration order.
func (s *Session) Servers() []*project.Server {
	return s.servers.List()
}

// Project assembles the converted user paths with the registered servers.
func (s *Session) Project(name string, paths ...*project.Container) *project.Project {
	return &project.Project{
		Name:      name,
		Servers:   s.Servers(),
		UserPaths: paths,
	}
}
