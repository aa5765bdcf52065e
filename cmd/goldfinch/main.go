// Command goldfinch generates property unions for annotated Go structs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/wowselim/goldfinch/cmd/goldfinch/internal/check"
	"github.com/wowselim/goldfinch/cmd/goldfinch/internal/gen"
	"github.com/wowselim/goldfinch/internal/errors"
	"github.com/wowselim/goldfinch/internal/settings"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate property unions for //goldfinch:properties types."`
	Check   check.Cmd  `cmd:"" help:"Verify that generated files are present and up to date."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

// withHints appends the hints attached anywhere in err's chain to its
// message, so kong prints them along with the error.
func withHints(err error) error {
	if err == nil {
		return nil
	}
	hints := errors.GetAllHints(err)
	if len(hints) == 0 {
		return err
	}
	var sb strings.Builder
	sb.WriteString(err.Error())
	for _, h := range hints {
		sb.WriteString("\n\nhint: ")
		sb.WriteString(h)
	}
	return errors.New(sb.String())
}

func main() {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, loadErr := settings.Load(".")

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("goldfinch"),
		kong.Description("Generate sealed property unions for Go structs."),
		kong.UsageOnError(),
		kong.BindTo(sigCtx, (*context.Context)(nil)),
	)
	ctx.FatalIfErrorf(withHints(loadErr))

	err := ctx.Run(s)
	ctx.FatalIfErrorf(withHints(err))
}
