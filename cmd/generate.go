package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/vmgen/api"
	"github.com/agentic-research/vmgen/internal/build"
	"github.com/agentic-research/vmgen/internal/compiler"
	"github.com/agentic-research/vmgen/internal/config"
	"github.com/agentic-research/vmgen/internal/emit"
	"github.com/agentic-research/vmgen/internal/store"
	"github.com/agentic-research/vmgen/vm"
)

type generateOptions struct {
	behavior   string
	class      string
	pkg        string
	base       string
	cache      string
	config     string
	check      bool
	pluginRoot string
	capacity   int
}

var genOpts generateOptions

var generateCmd = &cobra.Command{
	Use:   "generate [schema.json] [outdir]",
	Short: "Generate view-model sources",
	Long: `Generate writes <base>_codec.go and <base>_vm.go for a schema into outdir.

With --config, every viewmodel block of an HCL project file is generated
instead and the positional arguments are not used.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if genOpts.config != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectFor(genOpts, args)
		if err != nil {
			return err
		}
		return generate(cmd.Context(), cmd, project, genOpts.pluginRoot)
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&genOpts.behavior, "behavior", "b", "", "Go override source")
	f.StringVar(&genOpts.class, "class", "", "root class name (default: schema name)")
	f.StringVarP(&genOpts.pkg, "package", "p", "", "package of generated files (default: override package, then main)")
	f.StringVar(&genOpts.base, "base", "", "file name prefix (default: lower-cased class)")
	f.StringVar(&genOpts.cache, "cache", "", "SQLite artifact store; unchanged inputs are not regenerated")
	f.StringVarP(&genOpts.config, "config", "c", "", "HCL project file")
	f.BoolVar(&genOpts.check, "check", false, "build each codec after generating it")
	f.StringVar(&genOpts.pluginRoot, "plugin", "", "vmgen module dir; --check compiles a Go plugin against it")
	f.IntVar(&genOpts.capacity, "capacity", 0, "initial encode buffer size of checked codecs")
	rootCmd.AddCommand(generateCmd)
}

// projectFor turns command-line flags into a one-viewmodel project, or
// loads the --config file.
func projectFor(o generateOptions, args []string) (*api.Project, error) {
	if o.config != "" {
		p, err := config.Load(o.config)
		if err != nil {
			return nil, err
		}
		p.Check = p.Check || o.check
		return p, nil
	}
	p := &api.Project{
		Output:   args[1],
		Package:  o.pkg,
		Cache:    o.cache,
		Capacity: o.capacity,
		Check:    o.check,
		ViewModels: []api.ViewModel{{
			Name:     o.class,
			Schema:   args[0],
			Behavior: o.behavior,
			Base:     o.base,
		}},
	}
	return p, config.Validate(p)
}

func builderFor(p *api.Project, pluginRoot string) build.Builder {
	var opts []vm.CodecOption
	if p.Capacity > 0 {
		opts = append(opts, vm.WithCapacity(p.Capacity))
	}
	var next build.Builder = build.Interp{Options: opts}
	if pluginRoot != "" {
		next = build.Plugin{Root: pluginRoot, Options: opts}
	}
	return build.NewCache(build.Checked{Next: next})
}

func generate(ctx context.Context, cmd *cobra.Command, p *api.Project, pluginRoot string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var st *store.Store
	if p.Cache != "" {
		var err error
		if st, err = store.Open(p.Cache); err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
	}
	c := compiler.New(builderFor(p, pluginRoot), st)
	out := osfs.New(p.Output)

	var errs []error
	for _, v := range p.ViewModels {
		if err := generateOne(ctx, cmd, c, p, v, out); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Schema, err))
		}
	}
	return errors.Join(errs...)
}

func generateOne(ctx context.Context, cmd *cobra.Command, c *compiler.Compiler, p *api.Project, v api.ViewModel, out billy.Filesystem) error {
	req := compiler.Request{Class: v.Name, Package: p.Package, Base: v.Base}
	if v.Package != "" {
		req.Package = v.Package
	}
	var err error
	if req.Schema, err = os.ReadFile(v.Schema); err != nil {
		return err
	}
	if v.Behavior != "" {
		if req.Behavior, err = os.ReadFile(v.Behavior); err != nil {
			return err
		}
	}

	var res *compiler.Result
	if p.Check {
		res, err = c.Compile(ctx, req)
	} else {
		res, err = c.Generate(ctx, req)
	}
	if err != nil {
		return err
	}
	for _, d := range res.Lint {
		log.Printf("%s: %s", v.Behavior, d)
	}
	if err := emit.WriteFiles(out, ".", res.Files); err != nil {
		return err
	}
	for _, f := range res.Files {
		fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(p.Output, f.Name))
	}
	return nil
}
