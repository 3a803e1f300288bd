package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
	"github.com/unkn0wn-root/lrconv/internal/project"
	"github.com/unkn0wn-root/lrconv/internal/serverdef"
)

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Work with server definitions",
	}
	cmd.AddCommand(newServersValidateCmd())
	return cmd
}

func newServersValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a server definition or a servers list (YAML or JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServersValidate(args[0], cmd.OutOrStdout())
		},
	}
}

// runServersValidate accepts a document with a servers list or a single
// server definition.
func runServersValidate(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "read %s", path)
	}
	servers, err := serverdef.DecodeServers(data)
	if err != nil {
		return err
	}
	if servers == nil {
		srv, err := serverdef.Decode(data)
		if err != nil {
			return err
		}
		servers = []project.Server{srv}
	}

	p := newPalette(out)
	for _, srv := range servers {
		line := srv.String()
		if srv.Auth.Kind != project.AuthNone {
			line += " auth=" + srv.Auth.Kind.String()
		}
		if _, err := fmt.Fprintln(out, "  "+line); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(out, p.render(p.ok, fmt.Sprintf("%s: %d valid server definitions", path, len(servers))))
	return err
}
