// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the catalog database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize database and run migrations",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.Setup,
	}
}

// fetchCommand pulls the remote playlist state into the catalog.
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch playlists and tracks from Tidal into the catalog",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output summary as JSON",
			},
		},
		Action: r.Fetch,
	}
}

// scanCommand reads the on-disk library into the catalog.
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan playlist directories and record files and symlinks",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output summary as JSON",
			},
		},
		Action: r.Scan,
	}
}

// dedupCommand resolves primary file ownership for shared tracks.
func dedupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dedup",
		Usage: "Resolve which playlist owns each track's physical file",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "apply",
				Usage: "Write the resolved ownership back to the catalog",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output analysis as JSON",
			},
		},
		Action: r.Dedup,
	}
}

// planCommand prints the decisions a sync would execute.
func planCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Show the actions a sync would take, without executing them",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Limit the plan to one playlist ID",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text or csv",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the plan to a file instead of stdout",
			},
		},
		Action: r.Plan,
	}
}

// syncCommand runs the full reconciliation pipeline.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run a full reconciliation pass: fetch, scan, dedup, decide, execute",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Log intended actions without touching the filesystem",
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Sync a single playlist ID against current catalog state",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format: text, markdown or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
		},
		Action: r.Sync,
	}
}

// diffCommand compares remote state against the catalog without writing.
func diffCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Show differences between Tidal and the catalog, read-only",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: r.Diff,
	}
}

// dirsCommand materializes playlist directories.
func dirsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dirs",
		Usage: "Create a directory for every catalog playlist",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: r.Dirs,
	}
}
