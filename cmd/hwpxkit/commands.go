package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/merge"
	"github.com/FocuswithJustin/hwpxkit/core/sqlite"
	"github.com/FocuswithJustin/hwpxkit/internal/archive"
	"github.com/FocuswithJustin/hwpxkit/internal/config"
	"github.com/FocuswithJustin/hwpxkit/internal/journal"
)

// ParseCmd lists the units of a document.
type ParseCmd struct {
	Path string `arg:"" help:"HWPX document" type:"existingfile"`
}

func (c *ParseCmd) Run(a *app) error {
	ctx := context.Background()
	eng, sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	sums, err := eng.Parse(ctx, sess, c.Path)
	if err != nil {
		return err
	}
	rows := make([][]string, len(sums))
	for i, s := range sums {
		rows[i] = []string{strconv.Itoa(s.ID), s.Display, strconv.Itoa(s.ResourceCount), s.Preview}
	}
	return a.print(view{
		v:       sums,
		headers: []string{"ID", "Number", "Resources", "Preview"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
		footer:  fmt.Sprintf("%d unit(s)", len(sums)),
	})
}

// BuildCmd writes a document holding the selected units.
type BuildCmd struct {
	Path   string `arg:"" help:"HWPX document" type:"existingfile"`
	Select string `short:"s" required:"" help:"Unit ids to keep, e.g. 1,3,5-7"`
	Out    string `help:"Output path (default: <name>-selected-<count>.hwpx next to the input)" type:"path"`
}

type buildView struct {
	Output   string   `json:"output" yaml:"output"`
	Units    int      `json:"units" yaml:"units"`
	Kept     []string `json:"kept_resources" yaml:"kept_resources"`
	Removed  []string `json:"removed_resources" yaml:"removed_resources"`
	Files    []string `json:"removed_files" yaml:"removed_files"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Digest   string   `json:"digest" yaml:"digest"`
}

func (c *BuildCmd) Run(a *app) error {
	ids, err := parseSelection(c.Select)
	if err != nil {
		return err
	}
	out := c.Out
	if out == "" {
		stem := strings.TrimSuffix(filepath.Base(c.Path), filepath.Ext(c.Path))
		out = filepath.Join(filepath.Dir(c.Path), fmt.Sprintf("%s-selected-%d.hwpx", stem, len(ids)))
	}
	if err := checkPaths(c.Path, out); err != nil {
		return err
	}

	ctx := context.Background()
	eng, sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	res, err := eng.BuildTo(ctx, sess, c.Path, ids, out)
	if err != nil {
		return err
	}
	v := buildView{
		Output: res.Path, Units: len(res.Units), Kept: res.Kept, Removed: res.Removed,
		Files: res.Files, Digest: res.Digest, Warnings: errorStrings(res.Warnings),
	}
	rows := make([][]string, len(res.Units))
	for i, u := range res.Units {
		rows[i] = []string{strconv.Itoa(u.ID), u.Display, u.NewDisplay}
	}
	return a.print(view{
		v:       v,
		headers: []string{"ID", "Was", "Now"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight},
		footer: fmt.Sprintf("wrote %s (%d unit(s), %d resource(s) removed, blake3 %s)",
			res.Path, len(res.Units), len(res.Removed), short(res.Digest, 16)),
	})
}

// MergeCmd merges units of several documents into a template.
type MergeCmd struct {
	Template string   `arg:"" help:"Template document" type:"existingfile"`
	Sources  []string `arg:"" help:"Source documents, optionally with ids: path#1,3-4"`
	Out      string   `required:"" help:"Output path" type:"path"`
}

func (c *MergeCmd) Run(a *app) error {
	if err := checkPaths(c.Template, c.Out); err != nil {
		return err
	}
	sources := make([]merge.Source, len(c.Sources))
	for i, s := range c.Sources {
		src, err := parseSource(s)
		if err != nil {
			return err
		}
		if err := checkPaths(src.Path); err != nil {
			return err
		}
		sources[i] = src
	}

	ctx := context.Background()
	eng, sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	res, err := eng.Merge(ctx, sess, c.Template, sources, c.Out)
	if err != nil {
		return err
	}
	rows := make([][]string, len(res.Items))
	for i, it := range res.Items {
		rows[i] = []string{it.NewDisplay, it.Source, strconv.Itoa(it.ID)}
	}
	return a.print(view{
		v:       res,
		headers: []string{"Number", "Source", "ID"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight},
		footer: fmt.Sprintf("wrote %s (%d unit(s), %d unresolved reference(s), blake3 %s)",
			res.Path, len(res.Items), len(res.Unresolved), short(res.Digest, 16)),
	})
}

// InspectCmd shows the structure of a document.
type InspectCmd struct {
	Path string `arg:"" help:"HWPX document" type:"existingfile"`
}

func (c *InspectCmd) Run(a *app) error {
	ctx := context.Background()
	eng, sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	in, err := eng.Inspect(ctx, sess, c.Path)
	if err != nil {
		return err
	}
	var rows [][]string
	for _, m := range in.Members {
		rows = append(rows, []string{"member", m.Name, strconv.FormatUint(m.Size, 10), ""})
	}
	for _, s := range in.Sections {
		rows = append(rows, []string{"section", s.Name, strconv.Itoa(s.Units) + " unit(s)", s.Error})
	}
	for _, r := range in.Resources {
		rows = append(rows, []string{"resource", r.Key, strconv.Itoa(r.Units) + " unit(s)", r.Href})
	}
	return a.print(view{
		v:       in,
		headers: []string{"Kind", "Name", "Size/Units", "Detail"},
		rows:    rows,
		footer:  fmt.Sprintf("%d warning(s)", len(in.Warnings)),
	})
}

// RenderCmd renders equation scripts to PNG files.
type RenderCmd struct {
	Path   string `arg:"" help:"HWPX document" type:"existingfile"`
	Select string `short:"s" help:"Unit ids (default: all)"`
	OutDir string `name:"out-dir" required:"" help:"Directory for the PNG files" type:"path"`
}

func (c *RenderCmd) Run(a *app) error {
	if err := checkPaths(c.Path, c.OutDir); err != nil {
		return err
	}
	ids, err := parseSelection(c.Select)
	if err != nil {
		return err
	}
	ctx := context.Background()
	eng, sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	eqs, err := eng.RenderEquations(ctx, sess, c.Path, ids, c.OutDir)
	if err != nil {
		return err
	}
	rows := make([][]string, len(eqs))
	failed := 0
	for i, eq := range eqs {
		status := eq.Path
		if eq.Err != nil {
			status = eq.Err.Error()
			failed++
		}
		rows[i] = []string{strconv.Itoa(eq.Unit), strconv.Itoa(eq.Index), short(eq.Script, 40), status}
	}
	return a.print(view{
		v:       eqs,
		headers: []string{"Unit", "#", "Script", "Result"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignRight},
		footer:  fmt.Sprintf("%d equation(s), %d failed", len(eqs), failed),
	})
}

// JournalCmd groups journal operations.
type JournalCmd struct {
	Ls    JournalLsCmd    `cmd:"" help:"List recorded runs"`
	Prune JournalPruneCmd `cmd:"" help:"Delete finished runs older than a cutoff"`
}

// JournalLsCmd lists runs.
type JournalLsCmd struct {
	Session string `help:"Only runs of this session"`
	Status  string `help:"Only runs with this status (running, succeeded, failed)"`
	Limit   int    `default:"20" help:"Maximum number of runs"`
}

func (c *JournalLsCmd) Run(a *app) error {
	j, err := a.openJournal()
	if err != nil {
		return err
	}
	if j == nil {
		return errors.NewUnsupported("journal", "journal.enabled is false")
	}
	entries, err := j.List(context.Background(), journal.Filter{
		Session: c.Session, Status: journal.Status(c.Status), Limit: c.Limit,
	})
	if err != nil {
		return err
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			short(e.ID, 8), e.Kind, string(e.Status), e.StartedAt.Local().Format(time.DateTime),
			strconv.Itoa(e.Units), filepath.Base(e.Source), e.Selection, short(e.Digest, 16),
		}
	}
	return a.print(view{
		v:       entries,
		headers: []string{"Run", "Kind", "Status", "Started", "Units", "Source", "Selection", "Digest"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	})
}

// JournalPruneCmd removes old runs.
type JournalPruneCmd struct {
	OlderThan time.Duration `name:"older-than" default:"720h" help:"Age of the runs to delete"`
}

func (c *JournalPruneCmd) Run(a *app) error {
	j, err := a.openJournal()
	if err != nil {
		return err
	}
	if j == nil {
		return errors.NewUnsupported("journal", "journal.enabled is false")
	}
	n, err := j.Prune(context.Background(), time.Now().Add(-c.OlderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "pruned %d run(s)\n", n)
	return nil
}

// BundleCmd groups diagnostics bundle operations.
type BundleCmd struct {
	Ls   BundleLsCmd   `cmd:"" help:"List diagnostics bundles"`
	Show BundleShowCmd `cmd:"" help:"Show a bundle manifest or print one member"`
}

// BundleLsCmd lists diagnostics bundles.
type BundleLsCmd struct{}

func (c *BundleLsCmd) Run(a *app) error {
	bundles, err := archive.ListBundles(a.cfg.Build.DiagnosticsDir)
	if err != nil {
		return err
	}
	rows := make([][]string, len(bundles))
	for i, b := range bundles {
		created := ""
		if !b.Manifest.CreatedAt.IsZero() {
			created = b.Manifest.CreatedAt.Local().Format(time.DateTime)
		}
		rows[i] = []string{
			filepath.Base(b.Path), created, strconv.FormatInt(b.Size, 10),
			filepath.Base(b.Manifest.Source), b.Manifest.Reason,
		}
	}
	return a.print(view{
		v:       bundles,
		headers: []string{"Bundle", "Created", "Size", "Source", "Reason"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight},
	})
}

// BundleShowCmd prints one bundle.
type BundleShowCmd struct {
	ID     string `arg:"" help:"Build id or unique prefix"`
	Member string `short:"m" help:"Print this member instead of the manifest"`
}

func (c *BundleShowCmd) Run(a *app) error {
	b, err := archive.FindBundle(a.cfg.Build.DiagnosticsDir, c.ID)
	if err != nil {
		return err
	}
	if c.Member != "" {
		data, err := archive.ReadMember(b.Path, c.Member)
		if err != nil {
			return err
		}
		_, err = a.stdout.Write(data)
		return err
	}
	m := b.Manifest
	rows := [][]string{
		{"build", m.BuildID},
		{"source", m.Source},
		{"reason", m.Reason},
		{"created", m.CreatedAt.Local().Format(time.DateTime)},
		{"path", b.Path},
	}
	for _, name := range m.Members {
		rows = append(rows, []string{"member", name})
	}
	return a.print(view{v: b, headers: []string{"Field", "Value"}, rows: rows})
}

// ConfigCmd groups configuration operations.
type ConfigCmd struct {
	Init ConfigInitCmd `cmd:"" help:"Write the sample configuration file"`
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration"`
}

// ConfigInitCmd writes the sample configuration.
type ConfigInitCmd struct {
	Path string `arg:"" optional:"" help:"Destination (default: ~/.config/hwpxkit/config.toml)" type:"path"`
}

func (c *ConfigInitCmd) Run(a *app) error {
	path, err := config.Init(c.Path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", path)
	return nil
}

// ConfigShowCmd prints the configuration after defaults and overrides.
type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(a *app) error {
	if a.cfgPath != "" {
		fmt.Fprintf(a.stdout, "# loaded from %s\n", a.cfgPath)
	}
	data, err := toml.Marshal(a.cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	_, err = a.stdout.Write(data)
	return err
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(a.stdout, "hwpxkit version %s\n", version)
	fmt.Fprintf(a.stdout, "journal driver: %s (%s)\n", info.Package, info.DriverType)
	return nil
}

func errorStrings(errs []error) []string {
	var out []string
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
