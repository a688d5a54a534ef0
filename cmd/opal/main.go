package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/opalrpc/opal/cmd/opal/internal/check"
	"github.com/opalrpc/opal/cmd/opal/internal/gen"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate openapi.json and openapi.yaml from a router export."`
	Check   check.Cmd  `cmd:"" help:"Validate route configuration without generating files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("opal"),
		kong.Description("Opal CLI for OpenAPI document generation."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
