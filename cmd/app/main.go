package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/halvard/munin/internal"
	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/mcpserver"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/query"
	pkgconfig "github.com/halvard/munin/pkg/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "munin",
		Usage: "Queryable index over a corpus of work sessions, plans, and patterns",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("MUNIN_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			rebuildCommand(),
			queryCommand(),
			mutateCommand(),
			archiveCommand(),
			migrateCommand(),
			syncCommand(),
			pointCommand(),
			watchCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadApp builds the application from the config file named by the root
// --config flag, falling back to defaults when the file does not exist.
func loadApp(cmd *cli.Command, recoverIndex bool) (*internal.App, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfPresent(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return internal.NewApp(cfg, recoverIndex)
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func rebuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Re-derive the index from source files (source is always authoritative)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Engine.Rebuild(); err != nil {
				return err
			}
			app.Logger.Info("index rebuilt", slog.String("backend", app.Config.Index.Backend))
			return nil
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Query the document index",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id"},
			&cli.StringFlag{Name: "kind", Usage: "session, plan, or pattern"},
			&cli.StringFlag{Name: "date", Usage: "exact ISO date"},
			&cli.StringFlag{Name: "after", Usage: "exclusive lower date bound"},
			&cli.StringFlag{Name: "before", Usage: "inclusive upper date bound"},
			&cli.StringFlag{Name: "status"},
			&cli.StringFlag{Name: "author"},
			&cli.StringFlag{Name: "topic"},
			&cli.StringFlag{Name: "text", Usage: "full-text filter (sqlite backend only)"},
			&cli.StringFlag{Name: "mode", Value: "metadata", Usage: "metadata, section, or full"},
			&cli.StringFlag{Name: "section", Usage: "section heading for section mode"},
			&cli.IntFlag{Name: "limit"},
			&cli.IntFlag{Name: "offset"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			f := index.Filter{
				ID:         cmd.String("id"),
				Kind:       models.Kind(cmd.String("kind")),
				Date:       cmd.String("date"),
				DateAfter:  cmd.String("after"),
				DateBefore: cmd.String("before"),
				Status:     models.PlanStatus(cmd.String("status")),
				Author:     cmd.String("author"),
				Topic:      cmd.String("topic"),
				Text:       cmd.String("text"),
			}
			mode := query.Mode{Name: cmd.String("mode"), Section: cmd.String("section")}
			p := index.Page{Limit: int(cmd.Int("limit")), Offset: int(cmd.Int("offset"))}

			res, err := app.Engine.Query(f, mode, p)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func mutateCommand() *cli.Command {
	return &cli.Command{
		Name:  "mutate",
		Usage: "Apply a named-section operation to a document's source file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Required: true},
			&cli.StringFlag{Name: "id", Required: true},
			&cli.StringFlag{Name: "section", Required: true},
			&cli.StringFlag{Name: "op", Required: true, Usage: "append, prepend, insert-before, or insert-after"},
			&cli.StringFlag{Name: "content", Required: true},
			&cli.StringFlag{Name: "if-match", Usage: "expected source checksum (optimistic concurrency)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			doc, err := app.Engine.MutateSection(
				models.Kind(cmd.String("kind")),
				cmd.String("id"),
				cmd.String("section"),
				index.MutateOp(cmd.String("op")),
				cmd.String("content"),
				cmd.String("if-match"),
			)
			if err != nil {
				return err
			}
			app.Logger.Info("section mutated",
				slog.String("path", doc.SourcePath),
				slog.String("checksum", doc.Checksum))
			return nil
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Move matching documents out of the active index",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "older-than", Usage: "age threshold in days"},
			&cli.StringFlag{Name: "kind"},
			&cli.StringFlag{Name: "status"},
			&cli.StringFlag{Name: "glob", Usage: "doublestar pattern against source paths"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Engine.Archive(index.ArchiveCriteria{
				OlderThanDays: int(cmd.Int("older-than")),
				Kind:          models.Kind(cmd.String("kind")),
				Status:        models.PlanStatus(cmd.String("status")),
				PathGlob:      cmd.String("glob"),
			})
			if err != nil {
				return err
			}
			app.Logger.Info("documents archived", slog.Int("count", n))
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Copy the JSON index into a fresh sqlite index (explicit, one-way)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()
			cfg := app.Config

			src := index.NewJSONFile(cfg.Index.JSONPath, app.Store, app.Logger)
			dst, err := index.OpenSQLite(cfg.Index.SQLitePath, app.Store, app.Logger)
			if err != nil {
				return err
			}
			defer dst.Close()

			n, err := index.Migrate(src, dst)
			if err != nil {
				return err
			}
			app.Logger.Info("migration complete", slog.Int("documents", n))
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Regenerate the team index from the pointer files",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Syncer.Sync()
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func pointCommand() *cli.Command {
	return &cli.Command{
		Name:  "point",
		Usage: "Write your own plan pointer file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "author", Required: true},
			&cli.StringFlag{Name: "plan"},
			&cli.StringFlag{Name: "status"},
			&cli.StringFlag{Name: "note"},
			&cli.StringFlag{Name: "updated", Usage: "ISO date; defaults to today"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			updated := cmd.String("updated")
			if updated == "" {
				updated = today()
			}
			return app.Syncer.WritePointer(models.Pointer{
				Author:      cmd.String("author"),
				PlanID:      cmd.String("plan"),
				Status:      cmd.String("status"),
				Note:        cmd.String("note"),
				LastUpdated: updated,
			})
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep the index current as corpus files change",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.RunWatch(ctx)
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the query and sync surface over MCP stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()
			return mcpserver.New(app.Engine, app.Syncer).ServeStdio()
		},
	}
}
