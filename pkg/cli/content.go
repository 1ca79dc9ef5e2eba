package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/cli/config"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold).Sprint("✔")
	warnMark = color.New(color.FgYellow, color.Bold).Sprint("!")
	idColor  = color.New(color.FgCyan).SprintFunc()
	dimColor = color.New(color.Faint).SprintFunc()
)

func output(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func requireID(c *cli.Command) (string, error) {
	if c.NArg() != 1 {
		return "", goerr.New("exactly one content id is required", goerr.V("args", c.Args().Slice()))
	}
	return c.Args().First(), nil
}

func cmdDownload(file *config.File) *cli.Command {
	var (
		deps     cacheDeps
		id       string
		descFile string
		urls     []string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Content id; alone it pulls the descriptor from Firestore",
			Destination: &id,
		},
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "JSON content descriptor ('-' for stdin)",
			Destination: &descFile,
		},
		&cli.StringSliceFlag{
			Name:        "url",
			Usage:       "Media URL to cache under --id (repeatable)",
			Destination: &urls,
		},
	}

	return &cli.Command{
		Name:    "download",
		Aliases: []string{"d"},
		Usage:   "Download content media into the offline cache",
		Flags:   append(flags, deps.flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := deps.open(ctx, c, file)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			d, err := resolveDescriptor(ctx, rt, id, descFile, urls)
			if err != nil {
				return err
			}

			if !rt.cache.DownloadContent(ctx, d) {
				return goerr.New("failed to download content", goerr.V("id", d.ID))
			}

			rec, ok := rt.cache.GetOfflineContent(ctx, d.ID)
			if !ok {
				return goerr.New("downloaded content is missing from the index", goerr.V("id", d.ID))
			}
			fmt.Fprintf(output(c), "%s downloaded %s (%d files, %s)\n",
				okMark, idColor(rec.ID), len(rec.MediaURLs), humanize.Bytes(uint64(mediaSize(rec))))
			return nil
		},
	}
}

// resolveDescriptor builds the descriptor from a file, an explicit URL list or the
// remote record store, in that order of precedence.
func resolveDescriptor(ctx context.Context, rt *cacheRuntime, id, descFile string, urls []string) (*model.ContentDescriptor, error) {
	switch {
	case descFile != "":
		var r io.Reader = os.Stdin
		if descFile != "-" {
			f, err := os.Open(descFile)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to open descriptor file", goerr.V("path", descFile))
			}
			defer f.Close()
			r = f
		}

		var d model.ContentDescriptor
		if err := json.NewDecoder(r).Decode(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to parse descriptor file", goerr.V("path", descFile))
		}
		if id != "" {
			if d.ID != "" && d.ID != id {
				return nil, goerr.New("--id does not match the descriptor", goerr.V("id", id), goerr.V("descriptor_id", d.ID))
			}
			d.ID = id
		}
		return &d, nil

	case len(urls) > 0:
		if id == "" {
			return nil, goerr.New("--url requires --id")
		}
		return &model.ContentDescriptor{ID: id, MediaURLs: urls}, nil

	case id != "":
		if rt.records == nil {
			return nil, goerr.New("pulling a descriptor by id requires --firebase-project-id", goerr.V("id", id))
		}
		return rt.records.GetDescriptor(ctx, id)
	}

	return nil, goerr.New("one of --id, --file or --url is required")
}

func cmdRemove(file *config.File) *cli.Command {
	var deps cacheDeps

	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm"},
		Usage:     "Remove a content from the offline cache",
		ArgsUsage: "<id>",
		Flags:     deps.flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}

			rt, err := deps.open(ctx, c, file)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if !rt.cache.RemoveContent(ctx, id) {
				return goerr.New("failed to remove content", goerr.V("id", id))
			}
			fmt.Fprintf(output(c), "%s removed %s\n", okMark, idColor(id))
			return nil
		},
	}
}

func cmdList(file *config.File) *cli.Command {
	var (
		deps   cacheDeps
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print records as JSON",
			Destination: &asJSON,
		},
	}

	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List cached contents",
		Flags:   append(flags, deps.flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := deps.open(ctx, c, file)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			records := rt.cache.GetDownloadedContentList(ctx)
			w := output(c)
			if asJSON {
				return writeJSON(w, records)
			}

			if len(records) == 0 {
				fmt.Fprintln(w, dimColor("no cached content"))
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%d files\t%s\t%s\n",
					idColor(rec.ID),
					len(rec.MediaURLs),
					humanize.Bytes(uint64(mediaSize(rec))),
					dimColor(humanize.Time(rec.DownloadedAt)),
				)
			}
			return nil
		},
	}
}

func cmdShow(file *config.File) *cli.Command {
	var deps cacheDeps

	return &cli.Command{
		Name:      "show",
		Usage:     "Print the cached record of a content as JSON",
		ArgsUsage: "<id>",
		Flags:     deps.flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}

			rt, err := deps.open(ctx, c, file)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			rec, ok := rt.cache.GetOfflineContent(ctx, id)
			if !ok {
				return goerr.New("content is not cached", goerr.V("id", id))
			}
			return writeJSON(output(c), rec)
		},
	}
}

func cmdVerify(file *config.File) *cli.Command {
	var (
		deps   cacheDeps
		opts   model.VerifyOptions
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "check-remote",
			Usage:       "Also evict contents whose Firestore document was deleted",
			Destination: &opts.CheckRemote,
		},
		&cli.BoolFlag{
			Name:        "remove-orphans",
			Usage:       "Delete directories not referenced by the index",
			Destination: &opts.RemoveOrphans,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the report as JSON",
			Destination: &asJSON,
		},
	}

	return &cli.Command{
		Name:  "verify",
		Usage: "Reconcile the cache index with the files on disk",
		Flags: append(flags, deps.flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := deps.open(ctx, c, file)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			report, ok := rt.cache.VerifyCacheIntegrity(ctx, opts)
			if !ok {
				return goerr.New("integrity check failed")
			}

			w := output(c)
			if asJSON {
				return writeJSON(w, report)
			}

			for _, ev := range report.Evicted {
				fmt.Fprintf(w, "%s evicted %s: %s %s\n", warnMark, idColor(ev.ID), ev.Reason, dimColor(ev.Path))
			}
			for _, p := range report.RemovedOrphans {
				fmt.Fprintf(w, "%s removed orphan %s\n", warnMark, dimColor(p))
			}
			fmt.Fprintf(w, "%s checked %d, evicted %d, removed %d orphans\n",
				okMark, report.Checked, len(report.Evicted), len(report.RemovedOrphans))
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

// mediaSize sums the sizes of the cached files that still exist
func mediaSize(rec *model.OfflineContentRecord) int64 {
	var total int64
	for _, m := range rec.MediaURLs {
		if info, err := os.Stat(m.LocalPath); err == nil {
			total += info.Size()
		}
	}
	return total
}
