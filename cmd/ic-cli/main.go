package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/tuanvumaihuynh/inventory-count/internal/client"
	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/export"
	"github.com/tuanvumaihuynh/inventory-count/internal/log"
	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/pkg/correlationid"
)

const usage = `usage: ic-cli <command> [flags]

commands:
  import FILE [-encoding LABEL]   replace the catalog with a supplier file
  stats                           show catalog statistics
  search QUERY                    search products by name prefix
  scan CODE [-qty N]              count a product
  lines                           list counted lines
  undo                            remove the most recent line
  remove ID                       remove a line by id
  export txt|report [-o FILE]     download an export
  clear-lines                     empty the ledger
  clear-catalog                   empty the catalog
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "error running cli application: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type Config struct {
		Log    config.Log
		Client config.Client
		Export config.Export
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLoggerWithWriter(os.Stderr, cfg.Log)

	if len(args) == 0 {
		return errUsage
	}

	ctx = correlationid.NewContext(ctx, correlationid.New())
	c := client.New(cfg.Client)
	cmd := &command{client: c, out: out, exportCfg: cfg.Export}

	name, rest := args[0], args[1:]
	logger.DebugContext(ctx, "running command", slog.String("command", name))

	switch name {
	case "import":
		return cmd.importCatalog(ctx, rest)
	case "stats":
		return cmd.stats(ctx)
	case "search":
		return cmd.search(ctx, rest)
	case "scan":
		return cmd.scan(ctx, rest)
	case "lines":
		return cmd.lines(ctx)
	case "undo":
		return cmd.undo(ctx)
	case "remove":
		return cmd.remove(ctx, rest)
	case "export":
		return cmd.export(ctx, rest)
	case "clear-lines":
		return cmd.clearLines(ctx)
	case "clear-catalog":
		return cmd.clearCatalog(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}

type command struct {
	client    *client.Client
	out       io.Writer
	exportCfg config.Export
}

func (c *command) importCatalog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	encoding := fs.String("encoding", "", "source encoding label, server default when empty")
	file, err := parseWithArg(fs, args)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}

	res, err := c.client.ImportCatalog(ctx, data, *encoding)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "imported %d records from %d blocks (%d dropped)\n", res.Count, res.Blocks, res.Dropped)
	return nil
}

func (c *command) stats(ctx context.Context) error {
	st, err := c.client.CatalogStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "products: %d (%d distinct)\n", st.ProductCount, st.DistinctProducts)
	if st.LastImportAt != nil {
		fmt.Fprintf(c.out, "last import: %s\n", st.LastImportAt.Local().Format(time.DateTime))
	}
	return nil
}

func (c *command) search(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: search takes one query", errUsage)
	}

	products, err := c.client.Search(ctx, args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tPRICE")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Code, p.Name, p.Price.StringFixed(2))
	}
	return tw.Flush()
}

func (c *command) scan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	qty := fs.Int("qty", 1, "quantity to count")
	code, err := parseWithArg(fs, args)
	if err != nil {
		return err
	}

	line, ok, err := c.client.Count(ctx, code, *qty)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("product %s not found", code)
	}

	fmt.Fprintf(c.out, "#%d %s %s x%d\n", line.ID, line.Code, line.Name, line.Qty)
	return nil
}

func (c *command) lines(ctx context.Context) error {
	lines, err := c.client.Lines(ctx)
	if err != nil {
		return err
	}
	return writeLines(c.out, lines)
}

func (c *command) undo(ctx context.Context) error {
	line, ok, err := c.client.Undo(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(c.out, "nothing to undo")
		return nil
	}

	fmt.Fprintf(c.out, "removed #%d %s x%d\n", line.ID, line.Code, line.Qty)
	return nil
}

func (c *command) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: remove takes one line id", errUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid line id %q", errUsage, args[0])
	}

	line, err := c.client.Remove(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "removed #%d %s x%d\n", line.ID, line.Code, line.Qty)
	return nil
}

func (c *command) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("o", "", "output file, server suggested name when empty")
	kind, err := parseWithArg(fs, args)
	if err != nil {
		return err
	}

	body, filename, err := c.client.Download(ctx, kind)
	if err != nil {
		return err
	}

	switch {
	case *output != "":
		filename = export.EnsureExt(*output, ".txt")
	case filename == "":
		filename = export.FileName(c.exportCfg.FilePrefix, ".txt", time.Now())
	}

	if err := os.WriteFile(filename, body, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}

	fmt.Fprintf(c.out, "wrote %s\n", filename)
	return nil
}

func (c *command) clearLines(ctx context.Context) error {
	n, err := c.client.ClearLines(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "removed %d lines\n", n)
	return nil
}

func (c *command) clearCatalog(ctx context.Context) error {
	if err := c.client.ClearCatalog(ctx); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "catalog cleared")
	return nil
}

func writeLines(w io.Writer, lines []model.Line) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tQTY\tTIME")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", l.ID, l.Code, l.Name, l.Qty, l.TS.Local().Format(time.TimeOnly))
	}
	return tw.Flush()
}

// parseWithArg parses fs and returns its single positional argument. Flags
// may appear before or after it.
func parseWithArg(fs *flag.FlagSet, args []string) (string, error) {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return "", fmt.Errorf("%w: %s needs an argument", errUsage, fs.Name())
	}
	arg := rest[0]

	if err := fs.Parse(rest[1:]); err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 0 {
		return "", fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}

	return arg, nil
}
