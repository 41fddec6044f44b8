// Command docvector manages and queries a self-hosted documentation
// search index.
//
// Usage:
//
//	docvector serve --config config.yaml
//	docvector source add --name python-docs --type web --start-url https://docs.python.org
//	docvector ingest --source python-docs
//	docvector search --query "install requests"
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Run the ingestion worker and reconciliation loop."`
	Source  SourceCmd  `cmd:"" help:"Manage documentation sources."`
	Library LibraryCmd `cmd:"" help:"Manage the library catalogue."`
	Ingest  IngestCmd  `cmd:"" help:"Ingest a source or a single URL."`
	Jobs    JobsCmd    `cmd:"" help:"Inspect and cancel ingestion jobs."`
	Search  SearchCmd  `cmd:"" help:"Search the index."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, json, or text)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("docvector version %s\n", version)
	return nil
}

// loadConfig reads the config file when given, or builds the default
// config from environment variables.
func loadConfig(cli *CLI) (*config.Config, error) {
	if cli.Config != "" {
		return config.Load(cli.Config)
	}
	return config.Default()
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("docvector"),
		kong.Description("docvector - self-hosted documentation search for AI agents"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse log level: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
