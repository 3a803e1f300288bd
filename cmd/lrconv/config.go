package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/lrconv/internal/config"
	"github.com/unkn0wn-root/lrconv/internal/errdef"
)

type configInitOptions struct {
	format string
	force  bool
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the settings file",
	}

	initOpts := configInitOptions{format: string(config.SettingsFormatTOML)}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(initOpts, cmd.OutOrStdout())
		},
	}
	initCmd.Flags().StringVar(&initOpts.format, "format", initOpts.format, "settings format: toml or json")
	initCmd.Flags().BoolVar(&initOpts.force, "force", false, "overwrite an existing settings file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return errdef.Wrap(errdef.CodeFilesystem, err, "working directory")
			}
			return runConfigShow(wd, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func runConfigInit(opts configInitOptions, out io.Writer) error {
	var format config.SettingsFormat
	switch strings.ToLower(strings.TrimSpace(opts.format)) {
	case "", "toml":
		format = config.SettingsFormatTOML
	case "json":
		format = config.SettingsFormatJSON
	default:
		return errdef.New(errdef.CodeConfig, "unsupported settings format %q", opts.format)
	}
	path := filepath.Join(config.Dir(), "lrconv."+string(format))

	if !opts.force {
		_, err := os.Stat(path)
		if err == nil {
			return errdef.New(errdef.CodeConfig, "%s already exists (use --force)", path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return errdef.Wrap(errdef.CodeFilesystem, err, "stat %s", path)
		}
	}

	handle := config.SettingsHandle{Path: path, Format: format}
	if err := config.SaveSettings(config.DefaultSettings(), handle); err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "save settings")
	}
	_, err := fmt.Fprintf(out, "wrote %s\n", path)
	return err
}

// runConfigShow prints the settings convert would use from dir.
func runConfigShow(dir string, out io.Writer) error {
	settings, handle, err := config.LoadSettings()
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "load settings")
	}
	syn, err := settings.Syntax(dir)
	if err != nil {
		return err
	}

	source := handle.Path
	if _, statErr := os.Stat(handle.Path); statErr != nil {
		source = "defaults (no settings file)"
	}
	left, right := syn.Markers()
	variables := "-"
	if names := syn.Vars.Names(); len(names) > 0 {
		variables = strings.Join(names, ", ")
	}

	rows := [][2]string{
		{"settings", source},
		{"markers", left + " " + right},
		{"keep unterminated items", fmt.Sprintf("%t", settings.KeepUnterminatedItems)},
		{"variables", variables},
		{"output format", string(settings.Output.Format)},
		{"history", settings.HistoryPath()},
		{"history max entries", fmt.Sprintf("%d", settings.History.MaxEntries)},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(out, "%-24s %s\n", row[0]+":", row[1]); err != nil {
			return err
		}
	}
	return nil
}
