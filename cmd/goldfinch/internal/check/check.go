package check

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wowselim/goldfinch/cmd/goldfinch/internal/gen"
	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/goldfinchgen/sink"
	"github.com/wowselim/goldfinch/internal/errors"
	"github.com/wowselim/goldfinch/internal/logging"
	"github.com/wowselim/goldfinch/internal/settings"
)

// ErrStale is returned when generated files on disk are missing or out of date.
var ErrStale = errors.New("generated files are out of date")

// Cmd is the check command. It regenerates in memory and compares the
// result with the files on disk.
type Cmd struct {
	gen.Options `embed:""`

	Schema bool `help:"Print the extracted schema as YAML (source provider)."`
}

func (c *Cmd) Run(ctx context.Context, s *settings.Settings) error {
	merged, err := c.Merge(s)
	if err != nil {
		return err
	}
	if c.Schema && merged.Provider != "source" {
		return errors.WithHint(
			errors.Newf("--schema is not available with the %s provider", merged.Provider),
			"use --provider=source")
	}

	logger := logging.New(merged.Verbose)
	defer func() { _ = logger.Sync() }()

	mem := sink.NewMemorySink()
	result, err := c.Generate(ctx, merged, mem, logger)
	if err != nil {
		return err
	}

	if c.Schema && result.Schema != nil {
		if err := WriteSchema(os.Stdout, result.Schema); err != nil {
			return err
		}
	}

	return Compare(os.Stdout, mem, c.Root())
}

// Compare reports the files in mem that differ from those under root.
func Compare(w io.Writer, mem *sink.MemorySink, root string) error {
	stale, err := mem.Stale(root)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		fmt.Fprintf(w, "✓ %d generated files up to date\n", len(mem.Paths()))
		return nil
	}

	for _, p := range stale {
		if dep, ok := mem.Dependency(p); ok {
			fmt.Fprintf(w, "✗ %s (from %s)\n", p, dep)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", p)
	}
	return errors.WithHint(
		errors.Mark(errors.Newf("%d of %d generated files are missing or stale", len(stale), len(mem.Paths())), ErrStale),
		"run goldfinch gen")
}

// WriteSchema prints s as YAML.
func WriteSchema(w io.Writer, s *schema.Schema) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "encode schema")
	}
	return enc.Close()
}
