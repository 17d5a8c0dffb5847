// Package cli provides the modelreg command-line client for the model registry.
package cli

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/modelreg/internal/registry"
	"github.com/clean-dependency-project/modelreg/internal/view"
)

// commandError carries the user-facing message of a failed command while keeping the
// underlying error for errors.Is.
type commandError struct {
	msg string
	err error
}

func (e *commandError) Error() string { return e.msg }
func (e *commandError) Unwrap() error { return e.err }

// describe converts err into the message the user sees.
func describe(err error) error {
	if err == nil {
		return nil
	}
	return &commandError{msg: view.Describe(err), err: err}
}

// NewApp creates and configures the main CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:     "modelreg",
		Usage:    "Browse, submit and inspect models in a model registry",
		Version:  "1.0.0",
		Compiled: time.Now(),
		Authors: []*cli.Author{
			{
				Name:  "Clean Dependency Project",
				Email: "info@example.com",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML configuration file (defaults apply when empty)",
				EnvVars: []string{"MODELREG_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level for structured JSON logs on stderr (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "text",
				Usage:   "output format (text, json)",
				EnvVars: []string{"MODELREG_OUTPUT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in and remember the session token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true, EnvVars: []string{"MODELREG_USERNAME"}},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"MODELREG_PASSWORD"}},
				},
				Action: public(login),
			},
			{
				Name:   "logout",
				Usage:  "Forget the session token",
				Action: public(logout),
			},
			{
				Name:   "whoami",
				Usage:  "Show the signed-in user",
				Action: protected("whoami", whoami),
			},
			{
				Name:  "list",
				Usage: "List packages, optionally filtered by name pattern and version range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "name regular expression"},
					&cli.StringFlag{Name: "version", Usage: "version filter (1.2.3, 1.0.0-2.0.0, ~1.2, ^1.2)"},
					&cli.IntFlag{Name: "page", Value: 1, Usage: "page number"},
					&cli.IntFlag{Name: "limit", Usage: "page size (defaults to ui.page_size)"},
				},
				Action: protected("listing", listPackages),
			},
			{
				Name:      "show",
				Usage:     "Show a package",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "html", Usage: "also write an HTML report to this file"},
				},
				Action: protected("detail", showPackage),
			},
			{
				Name:  "create",
				Usage: "Register a package from explicit fields",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "package name"},
					&cli.StringFlag{Name: "version", Required: true, Usage: "semantic version"},
					&cli.StringFlag{Name: "card", Usage: "model card text"},
					&cli.StringSliceFlag{Name: "meta", Usage: "metadata entry key=value (repeatable)"},
					&cli.StringSliceFlag{Name: "parent", Usage: "parent package id (repeatable)"},
					&cli.BoolFlag{Name: "sensitive", Usage: "mark the package as sensitive"},
				},
				Action: protected("create", createPackage),
			},
			{
				Name:  "submit",
				Usage: "Submit a model by URL for ingestion and scoring",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "model-url", Usage: "model URL (required)"},
					&cli.StringFlag{Name: "code-url", Usage: "code repository URL"},
					&cli.StringFlag{Name: "dataset-url", Usage: "dataset URL"},
					&cli.StringFlag{Name: "name", Usage: "package name"},
					&cli.StringFlag{Name: "version", Usage: "package version (default " + view.DefaultSubmitVersion + ")"},
				},
				Action: protected("submit", submitModel),
			},
			{
				Name:      "rate",
				Usage:     "Trigger rating of a package and show the refreshed scores",
				ArgsUsage: "ID",
				Action:    protected("rate", ratePackage),
			},
			{
				Name:      "download-record",
				Usage:     "Download the rating record of a package",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "output directory (defaults to ui.download_dir)"},
				},
				Action: protected("detail", downloadRecord),
			},
			{
				Name:      "exports",
				Usage:     "List downloaded records",
				ArgsUsage: "[ID]",
				Action:    protected("detail", listExports),
			},
			{
				Name:  "query",
				Usage: "Search artifacts by name, regular expression or wildcard",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Value: string(view.ModeName), Usage: "query mode (name, regex, wildcard)"},
					&cli.StringFlag{Name: "name", Usage: "exact artifact name (name mode)"},
					&cli.StringFlag{Name: "regex", Usage: "regular expression (regex mode)"},
					&cli.StringFlag{Name: "pattern", Usage: "wildcard pattern with * and ? (wildcard mode)"},
					&cli.StringSliceFlag{Name: "type", Usage: "artifact type filter (model, dataset, code)"},
				},
				Action: protected("query", queryArtifacts),
			},
			{
				Name:      "upload",
				Usage:     "Register an artifact by source URL",
				ArgsUsage: "TYPE URL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "artifact name"},
				},
				Action: protected("upload", uploadArtifact),
			},
			{
				Name:      "artifact",
				Usage:     "Show an artifact",
				ArgsUsage: "TYPE ID",
				Action:    protected("artifact", showArtifact),
			},
			{
				Name:      "delete",
				Usage:     "Delete an artifact",
				ArgsUsage: "TYPE ID",
				Action:    protected("delete", deleteArtifact),
			},
			{
				Name:      "inspect",
				Usage:     "Show a model's rating, lineage and cost together",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dependency", Usage: "include dependency cost"},
					&cli.StringFlag{Name: "dot", Usage: "write the lineage graph as Graphviz DOT to this file"},
					&cli.StringFlag{Name: "html", Usage: "write an HTML report to this file"},
				},
				Action: protected("inspect", inspectModel),
			},
			{
				Name:      "lineage",
				Usage:     "Show a model's lineage graph",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dot", Usage: "write Graphviz DOT to this file, - for stdout"},
				},
				Action: protected("lineage", showLineage),
			},
			{
				Name:      "cost",
				Usage:     "Show the download cost of an artifact",
				ArgsUsage: "TYPE ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dependency", Usage: "include dependency cost"},
				},
				Action: protected("cost", showCost),
			},
			{
				Name:      "license-check",
				Usage:     "Check whether a model's license is compatible with a GitHub repository",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "github-url", Required: true, Usage: "GitHub repository URL or owner/repo"},
				},
				Action: protected("license", licenseCheck),
			},
			{
				Name:  "prefs",
				Usage: "Read or change local preferences",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Show one or all preferences",
						ArgsUsage: "[KEY]",
						Action:    public(getPreference),
					},
					{
						Name:      "set",
						Usage:     "Change a preference",
						ArgsUsage: "KEY VALUE",
						Action:    public(setPreference),
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Show registry health",
				Action: public(showHealth),
			},
			{
				Name:   "tracks",
				Usage:  "List the feature tracks the registry implements",
				Action: public(showTracks),
			},
		},
	}
}

// artifactTypeUsage lists the accepted artifact types for usage errors.
var artifactTypeUsage = registry.TypeModel + ", " + registry.TypeDataset + ", " + registry.TypeCode
