package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pitabwire/polyglot/site"
	"github.com/pitabwire/polyglot/version"
)

const (
	minArgsCommand = 2
	minArgsFetch   = 1
)

var errFetchUsage = errors.New("usage: polyglot fetch [--config FILE] <locale>")

func main() {
	if len(os.Args) < minArgsCommand {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		err = cmdServe(ctx, os.Args[2:])
	case "build":
		err = cmdBuild(ctx, os.Args[2:])
	case "fetch":
		err = cmdFetch(ctx, os.Args[2:])
	case "version":
		cmdVersion()
	case "help", "-h", "--help":
		usage()
	default:
		// #nosec G705 -- CLI output is not rendered in an HTML context.
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", os.Args[1])
		usage()
		stop()
		os.Exit(1)
	}

	if err != nil {
		stop()
		exitOnErr(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stdout, "polyglot <command> [args]")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Commands:")
	fmt.Fprintln(os.Stdout, "  serve [--config FILE] [--addr :8080]")
	fmt.Fprintln(os.Stdout, "  build [--config FILE] [--out DIR] [locale...]")
	fmt.Fprintln(os.Stdout, "  fetch [--config FILE] <locale>")
	fmt.Fprintln(os.Stdout, "  version")
}

func cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML or TOML configuration file")
	addr := fs.String("addr", "", "listen address, defaults to HTTP_PORT")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, a, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	srv, err := a.server(ctx)
	if err != nil {
		return err
	}

	listen := *addr
	if listen == "" {
		listen = a.cfg.HTTPPort()
	}
	return srv.ListenAndServe(ctx, listen)
}

func cmdBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML or TOML configuration file")
	outDir := fs.String("out", "out", "output directory")
	concurrency := fs.Int("concurrency", 0, "locales generated at once, defaults to GOMAXPROCS")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, a, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	opts := []site.BuilderOption{}
	if *concurrency > 0 {
		opts = append(opts, site.WithBuildConcurrency(*concurrency))
	}

	builder, err := site.NewBuilder(a.provider, opts...)
	if err != nil {
		return err
	}

	pages, err := builder.Build(ctx, *outDir, fs.Args()...)
	if err != nil {
		return err
	}

	for _, page := range pages {
		for _, file := range page.Files {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", page.Locale, file)
		}
	}
	return nil
}

func cmdFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML or TOML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < minArgsFetch {
		return errFetchUsage
	}

	ctx, a, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	props, err := site.StaticProps(ctx, a.provider, fs.Arg(0))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(props)
}

func cmdVersion() {
	fmt.Fprintln(os.Stdout, version.Get())
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
