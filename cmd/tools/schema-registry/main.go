// cmd/tools/schema-registry/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
	"github.com/ellaouzi/fos-app-sub002/internal/common/database"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/render"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
	"github.com/ellaouzi/fos-app-sub002/pkg/registry"
)

var catalogPath string

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	publishCmd := flag.NewFlagSet("publish", flag.ExitOnError)
	purgeCmd := flag.NewFlagSet("purge-cache", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{listCmd, validateCmd, publishCmd} {
		fs.StringVar(&catalogPath, "catalog", "configs/schema-catalog.json", "Path to the schema catalog")
	}
	onlyKey := publishCmd.String("key", "", "Publish a single schema key")
	dryRun := publishCmd.Bool("dry-run", false, "Validate and print what would be published")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		c := mustLoadCatalog()
		printCatalog(os.Stdout, c)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		c := mustLoadCatalog()
		if err := validateCatalog(c, filepath.Dir(catalogPath)); err != nil {
			fmt.Printf("Catalog validation failed:\n%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog validation passed (%d schemas).\n", len(c.Schemas))

	case "publish":
		publishCmd.Parse(os.Args[2:])
		c := mustLoadCatalog()
		dir := filepath.Dir(catalogPath)
		if err := validateCatalog(c, dir); err != nil {
			fmt.Printf("Catalog validation failed:\n%v\n", err)
			os.Exit(1)
		}
		entries, err := selectEntries(c, *onlyKey)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if *dryRun {
			for _, e := range entries {
				fmt.Printf("would publish %s from %s\n", e.Key, e.Path(dir))
			}
			return
		}
		if err := publishWithConfig(entries, dir); err != nil {
			fmt.Printf("Publish failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Published %d schemas.\n", len(entries))

	case "purge-cache":
		purgeCmd.Parse(os.Args[2:])
		n, err := purgeWithConfig()
		if err != nil {
			fmt.Printf("Purge failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed %d cached schemas.\n", n)

	case "help":
		fallthrough
	default:
		help()
	}
}

func mustLoadCatalog() *registry.Catalog {
	c, err := registry.LoadCatalog(catalogPath)
	if err != nil {
		fmt.Printf("Error loading catalog: %v\n", err)
		os.Exit(1)
	}
	return c
}

func printCatalog(w io.Writer, c *registry.Catalog) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATUS\tVERSION\tTITLE\tFILE")
	for _, e := range c.Schemas {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Key, e.Status, e.Version, e.Title, e.File)
	}
	tw.Flush()
}

// validateCatalog checks the catalog, then loads and builds every schema it
// lists.
func validateCatalog(c *registry.Catalog, dir string) error {
	if err := c.Validate(dir); err != nil {
		return err
	}
	var errs []error
	for _, e := range c.Schemas {
		if _, err := loadEntry(e, dir); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Key, err))
		}
	}
	return errors.Join(errs...)
}

func loadEntry(e registry.Entry, dir string) (*schema.FormSchema, error) {
	text, err := os.ReadFile(e.Path(dir))
	if err != nil {
		return nil, err
	}
	s, err := schema.Parse(string(text))
	if err != nil {
		return nil, err
	}
	if s.Key != e.Key {
		return nil, fmt.Errorf("file declares key %q", s.Key)
	}
	if _, err := render.Build(s, nil); err != nil {
		return nil, err
	}
	return s, nil
}

func selectEntries(c *registry.Catalog, key string) ([]registry.Entry, error) {
	if key == "" {
		return c.Published(), nil
	}
	e, err := c.Find(key)
	if err != nil {
		return nil, err
	}
	return []registry.Entry{*e}, nil
}

func publishWithConfig(entries []registry.Entry, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	var source schema.Source = schema.NewPostgresSource(pg.DB)
	if rc, err := database.NewRedis(cfg.Database.Redis); err == nil {
		defer rc.Close()
		source = schema.NewCachedSource(source, rc.Client, cfg.Forms.CachePrefix, cfg.Forms.CacheTTLDuration(), log)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return publish(ctx, schema.NewLoader(source, log), entries, dir)
}

// purgeWithConfig drops every cached schema so the workers reload them from
// prestation_ref. Needed after schemas are edited outside publish.
func purgeWithConfig() (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}
	rc, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		return 0, err
	}
	return rc.PurgePrefix(ctx, cfg.Forms.CachePrefix)
}

// publish stores each schema through loader. It stops at the first failure.
func publish(ctx context.Context, loader *schema.Loader, entries []registry.Entry, dir string) error {
	for _, e := range entries {
		s, err := loadEntry(e, dir)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Key, err)
		}
		if err := loader.Save(ctx, s); err != nil {
			return err
		}
		fmt.Printf("published %s\n", e.Key)
	}
	return nil
}

func help() {
	fmt.Println(`Usage: schema-registry <command> [flags]

Commands:
  list         Print the catalog
  validate     Check that every catalog entry loads and renders
  publish      Write published schemas to prestation_ref (-key, -dry-run)
  purge-cache  Drop every cached schema from Redis

Flags:
  -catalog     Path to the catalog (default configs/schema-catalog.json)`)
}
