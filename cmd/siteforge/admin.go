package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/logger"
	"github.com/Strob0t/SiteForge/internal/service"
	"github.com/Strob0t/SiteForge/internal/validation"
)

// runAdmin dispatches admin subcommands (list-tenants, resolve, seed).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "list-tenants":
		return runAdminListTenants(args[1:])
	case "resolve":
		return runAdminResolve(args[1:])
	case "seed":
		return runAdminSeed(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: siteforge admin <command> [options] [-- config flags]

Commands:
  list-tenants   List every tenant identity with its visibility
  resolve        Resolve a host and path and print the composed page
  seed           Create tenants and content from a YAML file
  help           Show this help message

Examples:
  siteforge admin list-tenants
  siteforge admin resolve --host acme.localhost --path /products/widget
  siteforge admin seed --file seed.yaml -- --driver sqlite
`)
}

// splitArgs separates command flags from config flags after "--".
func splitArgs(args []string) (cmd, cfg []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// jsonOutput reports whether results should be printed as JSON: when
// requested, or when stdout is not a terminal.
func jsonOutput(forced bool) bool {
	return forced || !term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec // fd fits in int
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAdminListTenants(args []string) error {
	cmdArgs, cfgArgs := splitArgs(args)
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON even on a terminal")
	if err := fs.Parse(cmdArgs); err != nil {
		return err
	}

	cfg, closer, err := loadConfig(cfgArgs, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ids, err := store.ListTenantIdentities(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if jsonOutput(*asJSON) {
		return printJSON(os.Stdout, ids)
	}
	if len(ids) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	vis := visibility(cfg)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSUBDOMAIN\tCUSTOM_DOMAIN\tSTATUS\tVISIBLE")
	for i := range ids {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
			ids[i].ID, ids[i].Subdomain, ids[i].CustomDomain, ids[i].Status, vis.Visible(ids[i].Status))
	}
	return w.Flush()
}

func runAdminResolve(args []string) error {
	cmdArgs, cfgArgs := splitArgs(args)
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	host := fs.String("host", "", "request host (required)")
	path := fs.String("path", "/", "escaped request path")
	asJSON := fs.Bool("json", false, "print JSON even on a terminal")
	if err := fs.Parse(cmdArgs); err != nil {
		return err
	}
	if *host == "" {
		return errors.New("--host is required")
	}

	cfg, closer, err := loadConfig(cfgArgs, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := logger.WithRequestID(context.Background(), "admin-resolve")
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	dir := service.NewDirectoryService(store, visibility(cfg), cfg.Directory.LocalDevDomain, cfg.Directory.RefreshInterval)
	p, err := service.NewSiteService(dir, store, service.NewDiagnostics(nil, nil), nil).Resolve(ctx, *host, *path)
	if err != nil {
		return fmt.Errorf("resolve %s%s: %w", *host, *path, err)
	}
	if jsonOutput(*asJSON) {
		return printJSON(os.Stdout, p)
	}

	fmt.Printf("Tenant: %s (%s)\n", p.Tenant.Name, p.Tenant.Subdomain)
	if p.Entity != nil {
		fmt.Printf("Entity: %s %s %q\n", p.Entity.Kind, p.Entity.Slug, p.Entity.Title)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tPART\tID\tTYPE\tORDER")
	n := 0
	row := func(part, id string, typ any, order int) {
		n++
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%d\n", n, part, id, typ, order)
	}
	if p.Navigation != nil {
		row("navigation", p.Navigation.ID, p.Navigation.Type, p.Navigation.Order)
	}
	for i := range p.Body {
		row("body", p.Body[i].ID, p.Body[i].Type, p.Body[i].Order)
	}
	if p.Footer != nil {
		row("footer", p.Footer.ID, p.Footer.Type, p.Footer.Order)
	}
	return w.Flush()
}

// seedFile is the YAML shape accepted by "admin seed". Block collections
// may be given as YAML (lists keep their order) or as a JSON string, which
// is stored verbatim and preserves the key order of keyed collections.
type seedFile struct {
	Tenants []seedTenant `yaml:"tenants"`
}

type seedTenant struct {
	tenant.CreateRequest `yaml:",inline"`
	RawBlocks            any          `yaml:"blocks"`
	Entities             []seedEntity `yaml:"entities"`
}

type seedEntity struct {
	content.SaveRequest `yaml:",inline"`
	RawBlocks           any `yaml:"blocks"`
}

func rawBlocks(v any) (json.RawMessage, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case string:
		return json.RawMessage(b), nil
	default:
		return json.Marshal(b)
	}
}

func runAdminSeed(args []string) error {
	cmdArgs, cfgArgs := splitArgs(args)
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	file := fs.String("file", "", "seed YAML file (required)")
	if err := fs.Parse(cmdArgs); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("--file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	cfg, closer, err := loadConfig(cfgArgs, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	q, err := openQueue(ctx, cfg)
	if err != nil {
		return err
	}
	var changes *service.ChangePublisher
	if q != nil {
		defer func() { _ = q.Drain() }()
		changes = service.NewChangePublisher(q, nil)
	}
	authoring := service.NewAuthoringService(store, validation.New(), changes)

	for i := range seed.Tenants {
		st := &seed.Tenants[i]
		if st.Blocks, err = rawBlocks(st.RawBlocks); err != nil {
			return fmt.Errorf("tenant %s blocks: %w", st.Subdomain, err)
		}
		t, err := authoring.CreateTenant(ctx, st.CreateRequest)
		if err != nil {
			return fmt.Errorf("create tenant %s: %w", st.Subdomain, err)
		}
		fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%s, status=%s)\n", t.Subdomain, t.ID, t.Status)

		for j := range st.Entities {
			se := &st.Entities[j]
			se.TenantID = t.ID
			if se.Blocks, err = rawBlocks(se.RawBlocks); err != nil {
				return fmt.Errorf("%s %s blocks: %w", se.Kind, se.Slug, err)
			}
			e, err := authoring.SaveEntity(ctx, se.SaveRequest)
			if err != nil {
				return fmt.Errorf("save %s %s: %w", se.Kind, se.Slug, err)
			}
			fmt.Fprintf(os.Stderr, "  %s saved: %s (published=%t)\n", e.Kind, e.Slug, e.Published)
		}
	}
	return nil
}
