// Package runner runs the reflection provider inside the user's package.
//
// Reflection needs the subject types compiled into a running program. The
// runner uses Go's -overlay flag to add a test file to the package that
// registers every annotated type with goldfinchgen and writes the generated
// files, then runs it with go test. A test file can reach unexported types
// and works for package main without touching its main function.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"go/format"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"text/template"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/internal/discover"
	"github.com/wowselim/goldfinch/internal/errors"
)

// TestName is the test function the overlay file declares.
const TestName = "TestGoldfinchReflectionRunner"

// FileName is the name of the overlay file within the package directory.
const FileName = "goldfinch_runner_test.go"

// Options configures the runner.
type Options struct {
	// Package holds the subjects to generate and the directory to run in.
	Package discover.Package

	// OutDir receives the generated files. Empty means Package.Dir.
	OutDir string

	// Defaults are passed to the generator for options the directives
	// leave unset.
	Defaults schema.GenerationConfig

	// resultFile is where the runner records the generated paths.
	resultFile string
}

// Result describes a completed run.
type Result struct {
	// Paths are the generated files, relative to the output directory.
	Paths []string

	// Sources maps each path to the file declaring its type.
	Sources map[string]string

	// Output is the combined output of go test.
	Output []byte
}

// Exec builds and runs the reflection runner for one package.
func Exec(ctx context.Context, opts Options) (*Result, error) {
	pkgDir := opts.Package.Dir
	if opts.OutDir == "" {
		opts.OutDir = pkgDir
	}
	outDir, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve output directory")
	}
	opts.OutDir = outDir

	tmpDir, err := os.MkdirTemp("", "goldfinch-run-*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp dir")
	}
	defer os.RemoveAll(tmpDir)
	opts.resultFile = filepath.Join(tmpDir, "paths.txt")

	runnerSrc, err := Generate(opts)
	if err != nil {
		return nil, errors.Wrap(err, "generate runner")
	}

	runnerFile := filepath.Join(tmpDir, FileName)
	if err := os.WriteFile(runnerFile, runnerSrc, 0644); err != nil {
		return nil, errors.Wrap(err, "write runner")
	}

	// The overlay maps a file that does not exist on disk into the package.
	overlayData := struct {
		Replace map[string]string `json:"Replace"`
	}{Replace: map[string]string{filepath.Join(pkgDir, FileName): runnerFile}}

	overlayJSON, err := json.Marshal(overlayData)
	if err != nil {
		return nil, errors.Wrap(err, "marshal overlay")
	}

	overlayFile := filepath.Join(tmpDir, "overlay.json")
	if err := os.WriteFile(overlayFile, overlayJSON, 0644); err != nil {
		return nil, errors.Wrap(err, "write overlay")
	}

	// -mod=mod lets go add the goldfinch requirement if it is missing.
	cmd := exec.CommandContext(ctx, "go", "test",
		"-mod=mod",
		"-overlay", overlayFile,
		"-run", "^"+TestName+"$",
		"-count=1",
		".")
	cmd.Dir = pkgDir
	cmd.Env = append(os.Environ(), "GOWORK=off")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &Result{Output: output}, runError(opts.Package.PackagePath, err, output)
	}

	data, err := os.ReadFile(opts.resultFile)
	if err != nil {
		return &Result{Output: output}, errors.Wrap(err, "read runner result")
	}

	result, err := parseResult(data, opts.Package)
	if err != nil {
		return &Result{Output: output}, err
	}
	result.Output = output
	return result, nil
}

// parseResult reads the "path\ttype" lines the runner writes.
func parseResult(data []byte, pkg discover.Package) (*Result, error) {
	result := &Result{Sources: make(map[string]string)}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return result, nil
	}
	for _, line := range strings.Split(s, "\n") {
		path, name, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, errors.Newf("malformed runner result line %q", line)
		}
		result.Paths = append(result.Paths, path)
		for _, subject := range pkg.Subjects {
			if subject.Name == name {
				result.Sources[path] = subject.Pos.Filename
				break
			}
		}
	}
	return result, nil
}

// generatedRef matches compiler positions in previously generated files.
var generatedRef = regexp.MustCompile(`(?m)^(\S*` + regexp.QuoteMeta(schema.GeneratedFileSuffix) + `):\d+`)

// runError describes a failed go test run. Generated files from an earlier
// run are compiled with the package, so one that no longer matches its type
// breaks the build.
func runError(pkgPath string, err error, output []byte) error {
	err = errors.Newf("run reflection provider in %s: %v\n%s", pkgPath, err, output)

	var stale []string
	for _, m := range generatedRef.FindAllSubmatch(output, -1) {
		name := filepath.Base(string(m[1]))
		if !slices.Contains(stale, name) {
			stale = append(stale, name)
		}
	}
	if len(stale) == 0 {
		return err
	}
	return errors.WithHintf(err,
		"delete the stale %s or use --provider=source", strings.Join(stale, ", "))
}

// check rejects subjects that cannot be named from a composite literal.
func check(pkg discover.Package) error {
	if pkg.Dir == "" {
		return errors.Newf("package %s has no directory", pkg.PackagePath)
	}
	if len(pkg.Subjects) == 0 {
		return errors.Newf("package %s has no annotated types", pkg.PackagePath)
	}
	for _, s := range pkg.Subjects {
		switch {
		case s.Generic:
			return schema.Errorf(schema.ErrUnsupportedSubject,
				"wrap the instantiation you need in a non-generic struct",
				"%s: generic type %s is not supported", s.Pos, s.Name)
		case s.Local:
			return schema.Errorf(schema.ErrUnsupportedSubject,
				"move the type declaration to package scope",
				"%s: type %s is declared inside a function", s.Pos, s.Name)
		}
	}
	return nil
}

// Generate creates the runner test file source.
func Generate(opts Options) ([]byte, error) {
	if err := check(opts.Package); err != nil {
		return nil, err
	}

	tmpl, err := template.New("runner").Parse(runnerTemplate)
	if err != nil {
		return nil, err
	}

	data := struct {
		TestName   string
		Package    string
		Subjects   []discover.Subject
		Defaults   schema.GenerationConfig
		OutDir     string
		ResultFile string
	}{
		TestName:   TestName,
		Package:    opts.Package.Name,
		Subjects:   opts.Package.Subjects,
		Defaults:   opts.Defaults,
		OutDir:     opts.OutDir,
		ResultFile: opts.resultFile,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "format runner\n%s", buf.Bytes())
	}
	return src, nil
}

const runnerTemplate = `// Code generated by goldfinch. DO NOT EDIT.

package {{.Package}}

import (
{{- if .ResultFile}}
	"os"
	"strings"
{{- end}}
	"testing"

	"github.com/wowselim/goldfinch/goldfinchgen"
	"github.com/wowselim/goldfinch/goldfinchgen/schema"
)

func {{.TestName}}(t *testing.T) {
	g := goldfinchgen.New().Provider(goldfinchgen.ProviderReflection)
{{- if .Defaults.Visibility}}
	g = g.WithVisibility({{printf "%q" .Defaults.Visibility}})
{{- end}}
{{- if .Defaults.Placement}}
	g = g.WithPlacement({{printf "%q" .Defaults.Placement}})
{{- end}}
{{- range .Subjects}}
	g = g.Add({{.Name}}{}, schema.GenerationConfig{Visibility: {{printf "%q" .Config.Visibility}}, Placement: {{printf "%q" .Config.Placement}}})
{{- end}}

	result, err := g.ToDir({{printf "%q" .OutDir}})
	if err != nil {
		t.Fatal(err)
	}
{{- if .ResultFile}}
	var lines []string
	for _, a := range result.Artifacts {
		lines = append(lines, a.Path+"\t"+a.Subject.Name)
	}
	if err := os.WriteFile({{printf "%q" .ResultFile}}, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatal(err)
	}
{{- else}}
	for _, p := range result.Paths() {
		t.Log(p)
	}
{{- end}}
}
`
