package gen

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wowselim/goldfinch/goldfinchgen"
	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/goldfinchgen/sink"
	"github.com/wowselim/goldfinch/internal/discover"
	"github.com/wowselim/goldfinch/internal/errors"
	"github.com/wowselim/goldfinch/internal/logging"
	"github.com/wowselim/goldfinch/internal/runner"
	"github.com/wowselim/goldfinch/internal/settings"
)

// Options are the flags shared by gen and check. Unset flags fall back to
// .goldfinch.yaml and GOLDFINCH_* settings.
type Options struct {
	Patterns   []string `arg:"" optional:"" help:"Packages to scan (default: current directory)."`
	Provider   string   `help:"Metadata provider: source or reflection." short:"p"`
	Visibility string   `help:"Default visibility: public, internal or inherit."`
	Placement  string   `help:"Default variant placement: top or nested."`
	Types      []string `help:"Only generate these types." short:"t"`
	Tags       []string `help:"Extra build tags for package loading (source provider)."`
	Out        string   `help:"Write every file into this directory instead of next to its package." short:"o" type:"path"`
	Verbose    bool     `help:"Log progress to stderr." short:"v"`
}

// Merge returns s with every set flag applied on top, validated.
func (o *Options) Merge(s *settings.Settings) (*settings.Settings, error) {
	merged := *s
	if o.Provider != "" {
		merged.Provider = o.Provider
	}
	if o.Visibility != "" {
		merged.Visibility = schema.VisibilityMode(o.Visibility)
	}
	if o.Placement != "" {
		merged.Placement = schema.Placement(o.Placement)
	}
	if len(o.Tags) > 0 {
		merged.Tags = o.Tags
	}
	merged.Verbose = merged.Verbose || o.Verbose

	if err := schema.ValidateStruct(merged); err != nil {
		return nil, errors.WithHint(err,
			"--provider is source or reflection, --visibility is public, internal or inherit, --placement is top or nested")
	}
	return &merged, nil
}

// Root is the directory generated paths are relative to.
func (o *Options) Root() string {
	if o.Out != "" {
		return o.Out
	}
	return "."
}

func (o *Options) patterns() []string {
	if len(o.Patterns) == 0 {
		return []string{"."}
	}
	return o.Patterns
}

// Result is what a generation run produced.
type Result struct {
	// Paths are the written files, relative to Root.
	Paths []string

	// Schema is the extracted schema. The reflection provider runs out of
	// process and leaves it nil.
	Schema *schema.Schema
}

// Generate runs the configured provider and writes into out.
func (o *Options) Generate(ctx context.Context, s *settings.Settings, out sink.OutputSink, logger *zap.Logger) (*Result, error) {
	if s.Provider == goldfinchgen.ProviderReflection {
		return o.generateReflection(ctx, s, out, logger)
	}

	g := goldfinchgen.FromPackages(o.patterns()...).
		Types(o.Types...).
		Tags(s.Tags...).
		WithVisibility(s.Visibility).
		WithPlacement(s.Placement).
		WithLogger(logger).
		WithSink(out)
	if o.Out != "" {
		g.OutDir(o.Out)
	}

	result, err := g.Generate(ctx)
	if err != nil {
		return nil, err
	}
	sch := result.Schema()
	return &Result{Paths: result.Paths(), Schema: &sch}, nil
}

type file struct {
	path    string
	content []byte
	dep     sink.Dependency
}

// generateReflection runs the reflection runner once per package into a
// scratch directory, then hands the files to out. Nothing reaches out
// unless every package succeeds.
func (o *Options) generateReflection(ctx context.Context, s *settings.Settings, out sink.OutputSink, logger *zap.Logger) (*Result, error) {
	logger = logging.Named(logger, "reflection")

	pkgs, err := discover.Find(ctx, o.patterns()...)
	if err != nil {
		return nil, err
	}
	pkgs, err = discover.Select(pkgs, o.Types)
	if err != nil {
		return nil, err
	}

	base, err := filepath.Abs(".")
	if err != nil {
		return nil, errors.Wrap(err, "resolve working directory")
	}

	var files []file
	for _, pkg := range pkgs {
		logger.Debug("running reflection provider",
			zap.String(logging.FieldPackage, pkg.PackagePath),
			zap.Int(logging.FieldCount, len(pkg.Subjects)))

		generated, err := runPackage(ctx, pkg, s.Defaults())
		if err != nil {
			return nil, err
		}
		for _, f := range generated {
			if o.Out == "" {
				f.path, err = relPath(base, pkg.Dir, f.path)
				if err != nil {
					return nil, err
				}
			}
			files = append(files, f)
		}
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.path] {
			return nil, schema.Errorf(schema.ErrNameCollision,
				"rename one of the types",
				"more than one type generates %s", f.path)
		}
		seen[f.path] = true
	}

	tracker, _ := out.(sink.DependencyTracker)
	result := &Result{}
	for _, f := range files {
		if err := out.WriteFile(ctx, f.path, f.content); err != nil {
			return nil, errors.Wrapf(err, "write %s", f.path)
		}
		if tracker != nil {
			tracker.AddDependency(f.path, f.dep)
		}
		logger.Info("wrote file", zap.String(logging.FieldPath, f.path))
		result.Paths = append(result.Paths, f.path)
	}
	return result, nil
}

func runPackage(ctx context.Context, pkg discover.Package, defaults schema.GenerationConfig) ([]file, error) {
	scratch, err := os.MkdirTemp("", "goldfinch-out-*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp dir")
	}
	defer os.RemoveAll(scratch)

	res, err := runner.Exec(ctx, runner.Options{
		Package:  pkg,
		OutDir:   scratch,
		Defaults: defaults,
	})
	if err != nil {
		return nil, err
	}

	return readGenerated(scratch, pkg, res)
}

// readGenerated loads the files a runner wrote into dir and marks each with
// the file declaring its type.
func readGenerated(dir string, pkg discover.Package, res *runner.Result) ([]file, error) {
	files := make([]file, 0, len(res.Paths))
	for _, p := range res.Paths {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
		if err != nil {
			return nil, errors.Wrapf(err, "read generated %s", p)
		}
		files = append(files, file{
			path:    p,
			content: content,
			dep:     sink.Dependency{File: res.Sources[p], Package: pkg.PackagePath},
		})
	}
	return files, nil
}

// relPath places name in dir, relative to base.
func relPath(base, dir, name string) (string, error) {
	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return "", errors.Wrapf(err, "locate %s", dir)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.WithHint(
			errors.Newf("package directory %s is outside of %s", dir, base),
			"run goldfinch from the module root or use --out")
	}
	return path.Join(rel, name), nil
}

// Cmd is the gen command.
type Cmd struct {
	Options `embed:""`

	DryRun bool `help:"Print the files that would be written without writing them." name:"dry-run" short:"n"`
}

func (c *Cmd) Run(ctx context.Context, s *settings.Settings) error {
	merged, err := c.Merge(s)
	if err != nil {
		return err
	}
	logger := logging.New(merged.Verbose)
	defer func() { _ = logger.Sync() }()

	var out sink.OutputSink = sink.NewFilesystemSink(c.Root())
	if c.DryRun {
		out = sink.NewMemorySink()
	}

	result, err := c.Generate(ctx, merged, out, logger)
	if err != nil {
		return err
	}

	for _, p := range result.Paths {
		if c.Out != "" {
			p = filepath.Join(c.Out, filepath.FromSlash(p))
		}
		fmt.Println(p)
	}
	return nil
}
