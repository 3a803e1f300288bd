package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/lrconv/internal/config"
	"github.com/unkn0wn-root/lrconv/internal/diag"
	"github.com/unkn0wn-root/lrconv/internal/errdef"
	"github.com/unkn0wn-root/lrconv/internal/filesvc"
	"github.com/unkn0wn-root/lrconv/internal/history"
	"github.com/unkn0wn-root/lrconv/internal/lrscript"
	"github.com/unkn0wn-root/lrconv/internal/project"
	"github.com/unkn0wn-root/lrconv/internal/projectwriter"
	"github.com/unkn0wn-root/lrconv/internal/reader"
	"github.com/unkn0wn-root/lrconv/internal/serverdef"
	"github.com/unkn0wn-root/lrconv/internal/telemetry"
	"github.com/unkn0wn-root/lrconv/internal/util"
	"github.com/unkn0wn-root/lrconv/internal/watcher"
)

type convertOptions struct {
	projectDir  string
	name        string
	out         string
	format      string
	serversFile string
	varsFile    string
	left        string
	right       string
	keepItems   bool
	recursive   bool
	diff        bool
	dryRun      bool
	force       bool
	strict      bool
	quiet       bool
	noHistory   bool
	watch       bool
	interval    time.Duration
}

func newConvertCmd() *cobra.Command {
	opts := convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert [scripts...]",
		Short: "Convert the scripts of a recorded project",
		Long: "Convert reads each script in order through one session, so servers are shared\n" +
			"between scripts. Without arguments every *.c file of the project directory is read,\n" +
			"vuser_init first and vuser_end last.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.projectDir, "project", "p", "", "recorded project directory (default: current directory)")
	fs.StringVar(&opts.name, "name", "", "project name (default: project directory name)")
	fs.StringVarP(&opts.out, "out", "o", "", "output file (default: stdout)")
	fs.StringVarP(&opts.format, "format", "f", "", "output format: yaml or json")
	fs.StringVar(&opts.serversFile, "servers", "", "server definitions to register before reading scripts")
	fs.StringVar(&opts.varsFile, "vars-file", "", "variable mapping file (OLD=new lines)")
	fs.StringVar(&opts.left, "left-brace", "", "left variable marker")
	fs.StringVar(&opts.right, "right-brace", "", "right variable marker")
	fs.BoolVar(&opts.keepItems, "keep-unterminated-items", false, "keep a trailing item list entry without ENDITEM")
	fs.BoolVarP(&opts.recursive, "recursive", "r", false, "also read scripts from subdirectories")
	fs.BoolVar(&opts.diff, "diff", false, "print a unified diff against the existing output file")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "do not write the output file")
	fs.BoolVar(&opts.force, "force", false, "overwrite an existing output file")
	fs.BoolVar(&opts.strict, "strict", false, "fail when any conversion error was reported")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "do not log diagnostics")
	fs.BoolVar(&opts.noHistory, "no-history", false, "do not record the run in history")
	fs.BoolVarP(&opts.watch, "watch", "w", false, "convert again whenever a script or input file changes")
	fs.DurationVar(&opts.interval, "interval", time.Second, "polling interval for --watch")
	return cmd
}

func runConvert(ctx context.Context, opts convertOptions, args []string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !opts.watch {
		return convertOnce(ctx, opts, args, stdout, stderr)
	}
	return watchInputs(ctx, opts, args, stdout, stderr)
}

// watchInputs converts once and again on every input change until ctx is
// cancelled. Later runs overwrite the output they produced themselves.
func watchInputs(ctx context.Context, opts convertOptions, args []string, stdout, stderr io.Writer) error {
	settings, _, err := config.LoadSettings()
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "load settings")
	}
	settings = applyFlags(settings, opts)
	dir, err := projectDir(opts.projectDir)
	if err != nil {
		return err
	}
	scripts, err := scriptPaths(dir, args, opts.recursive)
	if err != nil {
		return err
	}

	inputs := append([]string{}, scripts...)
	if opts.serversFile != "" {
		inputs = append(inputs, opts.serversFile)
	}
	if vf := settings.VariablesFile; vf != "" {
		if !filepath.IsAbs(vf) {
			vf = filepath.Join(dir, vf)
		}
		inputs = append(inputs, vf)
	}

	w := watcher.New(watcher.Options{Interval: opts.interval})
	if err := w.Add(inputs...); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "watch inputs")
	}
	if err := convertOnce(ctx, opts, args, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "lrconv: error: %s\n", errdef.Message(err))
	}
	fmt.Fprintf(stderr, "lrconv: watching %d files\n", len(w.Paths()))

	opts.force = true
	err = w.Run(ctx, func(changes []watcher.Change) {
		for _, c := range changes {
			state := "changed"
			if c.Removed {
				state = "removed"
			}
			fmt.Fprintf(stderr, "lrconv: %s %s\n", state, c.Path)
		}
		if err := convertOnce(ctx, opts, args, stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "lrconv: error: %s\n", errdef.Message(err))
		}
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func convertOnce(ctx context.Context, opts convertOptions, args []string, stdout, stderr io.Writer) error {
	started := time.Now()

	settings, _, err := config.LoadSettings()
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "load settings")
	}
	settings = applyFlags(settings, opts)

	dir, err := projectDir(opts.projectDir)
	if err != nil {
		return err
	}
	syn, err := settings.Syntax(dir)
	if err != nil {
		return err
	}

	scripts, err := scriptPaths(dir, args, opts.recursive)
	if err != nil {
		return err
	}

	logOut := stderr
	if opts.quiet {
		logOut = io.Discard
	}
	rep := diag.New(log.New(logOut, "lrconv: ", 0))
	session := reader.NewSession(reader.Options{
		Syntax:     syn,
		ProjectDir: dir,
		Items:      lrscript.ItemOptions{KeepUnterminated: settings.KeepUnterminatedItems},
		Reporter:   rep,
	})

	if opts.serversFile != "" {
		if err := registerServers(session, opts.serversFile); err != nil {
			return err
		}
	}

	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	telemetryCfg.Version = version
	inst, err := telemetry.New(telemetryCfg)
	if err != nil {
		rep.Warnf("telemetry disabled: %v", err)
		inst = telemetry.Noop()
	}
	defer func() {
		_ = inst.Shutdown(context.Background())
	}()

	name := strings.TrimSpace(opts.name)
	if name == "" {
		name = filepath.Base(dir)
	}

	var paths []*project.Container
	for _, script := range scripts {
		c, err := convertScript(ctx, session, inst, name, script)
		if err != nil {
			return err
		}
		paths = append(paths, c)
	}
	p := session.Project(name, paths...)

	format := projectwriter.Format(settings.Output.Format)
	wopts := projectwriter.Options{
		Format:            format,
		OverwriteExisting: opts.force,
		HeaderComment:     fmt.Sprintf("Generated by lrconv %s from %s", version, dir),
	}
	content, err := projectwriter.Render(p, wopts)
	if err != nil {
		return err
	}

	if opts.diff && opts.out != "" {
		preview, err := projectwriter.Preview(opts.out, content)
		if err != nil {
			return err
		}
		if preview == "" {
			preview = "no changes\n"
		}
		if _, err := io.WriteString(stdout, preview); err != nil {
			return err
		}
	}

	summaryOut := stdout
	switch {
	case opts.dryRun:
	case opts.out == "":
		if _, err := stdout.Write(content); err != nil {
			return err
		}
		summaryOut = stderr
	default:
		if err := projectwriter.WriteProject(ctx, p, opts.out, wopts); err != nil {
			return errdef.Wrap(errdef.CodeFilesystem, err, "write %s", opts.out)
		}
	}

	stats := p.Stats()
	if !opts.noHistory {
		recordHistory(ctx, settings, rep, history.Entry{
			Project:    name,
			ProjectDir: dir,
			Scripts:    scripts,
			Output:     opts.out,
			Format:     string(format),
			Servers:    len(p.Servers),
			Containers: stats.Containers,
			Pages:      stats.Pages,
			Requests:   stats.Requests,
			Cookies:    stats.Cookies,
			Warnings:   len(rep.Warnings()),
			Errors:     len(rep.Errors()),
			Duration:   time.Since(started),
		})
	}

	if err := printSummary(summaryOut, summary{
		Project:  name,
		Scripts:  len(scripts),
		Output:   opts.out,
		Servers:  len(p.Servers),
		Stats:    stats,
		Warnings: len(rep.Warnings()),
		Errors:   len(rep.Errors()),
	}); err != nil {
		return err
	}

	if opts.strict && len(rep.Errors()) > 0 {
		return errdef.New(errdef.CodeValidation, "%d conversion errors", len(rep.Errors()))
	}
	return nil
}

func applyFlags(s config.Settings, opts convertOptions) config.Settings {
	if opts.left != "" || opts.right != "" {
		s.LeftBrace, s.RightBrace = opts.left, opts.right
	}
	if opts.keepItems {
		s.KeepUnterminatedItems = true
	}
	if opts.varsFile != "" {
		// flag paths are relative to the working directory
		if abs, err := filepath.Abs(opts.varsFile); err == nil {
			s.VariablesFile = abs
		} else {
			s.VariablesFile = opts.varsFile
		}
	}
	if opts.format != "" {
		s.Output.Format = config.OutputFormat(opts.format)
	}
	return config.NormaliseSettings(s)
}

func projectDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errdef.Wrap(errdef.CodeFilesystem, err, "working directory")
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeFilesystem, err, "project directory %s", dir)
	}
	return abs, nil
}

// scriptPaths resolves explicit scripts against dir, or lists the scripts
// of dir in run order.
func scriptPaths(dir string, args []string, recursive bool) ([]string, error) {
	if len(args) == 0 {
		entries, err := filesvc.ListScripts(dir, recursive)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeFilesystem, err, "list scripts")
		}
		if len(entries) == 0 {
			return nil, errdef.New(errdef.CodeFilesystem, "no scripts found in %s", dir)
		}
		paths := make([]string, 0, len(entries))
		for _, e := range entries {
			paths = append(paths, e.Path)
		}
		return paths, nil
	}
	resolved := make([]string, 0, len(args))
	for _, arg := range args {
		if !filepath.IsAbs(arg) {
			if _, err := os.Stat(arg); err != nil {
				arg = filepath.Join(dir, arg)
			}
		}
		resolved = append(resolved, arg)
	}
	return util.UniquePaths(resolved), nil
}

func registerServers(session *reader.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "read servers %s", path)
	}
	servers, err := serverdef.DecodeServers(data)
	if err != nil {
		return err
	}
	for _, srv := range servers {
		if got, diverged := session.Registry().GetOrAdd(srv); diverged {
			session.Reporter().Warnf("server %q defined twice, keeping %s", srv.Name, got)
		}
	}
	session.Reporter().Infof("%d servers registered from %s", session.Registry().Len(), path)
	return nil
}

func convertScript(
	ctx context.Context,
	session *reader.Session,
	inst telemetry.Instrumenter,
	projectName, path string,
) (*project.Container, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read script %s", path)
	}
	name := util.ScriptName(path)
	calls, err := lrscript.ParseSource(name, string(src))
	if err != nil {
		return nil, err
	}

	rep := session.Reporter()
	warnBefore, errBefore := rep.Warnings(), rep.Errors()

	spanCtx, span := inst.Start(ctx, telemetry.ScriptStart{
		Project: projectName,
		Name:    name,
		Path:    path,
		Calls:   len(calls),
	})
	c, err := session.ReadScript(spanCtx, name, calls)
	result := telemetry.ScriptResult{
		Err:      err,
		Warnings: newMessages(warnBefore, rep.Warnings()),
		Errors:   newMessages(errBefore, rep.Errors()),
	}
	if c != nil {
		st := (&project.Project{UserPaths: []*project.Container{c}}).Stats()
		result.Containers, result.Pages = st.Containers, st.Pages
		result.Requests, result.Cookies = st.Requests, st.Cookies
	}
	span.End(result)
	return c, err
}

func newMessages(before, after []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, m := range before {
		seen[m] = struct{}{}
	}
	var out []string
	for _, m := range after {
		if _, ok := seen[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func recordHistory(ctx context.Context, settings config.Settings, rep *diag.Reporter, entry history.Entry) {
	store := history.NewStore(settings.HistoryPath(), settings.History.MaxEntries)
	defer func() {
		_ = store.Close()
	}()
	if _, err := store.Append(ctx, entry); err != nil {
		rep.Warnf("history not recorded: %s", errdef.Message(err))
	}
}
