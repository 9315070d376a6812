package details

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/build"
	"github.com/gelm-lang/gelm/pkg/cache"
	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/outline"
	"github.com/gelm-lang/gelm/pkg/problem"
	"github.com/gelm-lang/gelm/pkg/registry"
	"github.com/gelm-lang/gelm/pkg/solver"
	"github.com/gelm-lang/gelm/pkg/stuff"
)

// Env is the ambient state of one engine run: the filesystem, the home
// directory, how to reach the registry, and the module compiler.
type Env struct {
	Fs           afero.Fs
	Home         string
	RegistryBase string
	Cache        cache.Cache
	CacheTTL     time.Duration
	Offline      bool
	Compiler     compiler.Compiler
	Logger       *log.Logger
}

func (e *Env) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e *Env) registryBase() string {
	if e.RegistryBase != "" {
		return e.RegistryBase
	}
	return registry.DefaultBase
}

func (e *Env) responseCache() cache.Cache {
	if e.Cache != nil {
		return e.Cache
	}
	return cache.NewNullCache()
}

// Load returns the project's verified details, reusing the persisted
// record when the manifest has not been touched since it was written.
//
// The reuse test is mtime equality, nothing finer: a touched manifest
// regenerates even if its bytes are unchanged, and the regeneration then
// reuses every cached package artifact via fingerprints.
func Load(ctx context.Context, env *Env, root string) (*Details, problem.Problem) {
	info, err := env.Fs.Stat(stuff.ProjectManifest(root))
	if err != nil {
		return nil, &problem.BadOutline{Reason: err.Error()}
	}
	newTime := info.ModTime().UnixNano()

	if data, err := afero.ReadFile(env.Fs, stuff.DetailsPath(root)); err == nil {
		if persisted, err := Decode(data); err == nil && persisted.OldTime == newTime {
			persisted.BuildID++
			if encoded, err := Encode(persisted); err == nil {
				_ = afero.WriteFile(env.Fs, stuff.DetailsPath(root), encoded, 0o644)
			}
			env.logger().Debug("reusing persisted details", "build-id", persisted.BuildID)
			return persisted, nil
		}
	}

	return generate(ctx, env, root, newTime)
}

// VerifyInstall runs the verify pipeline up to and including the
// dependency builds, then discards the result. The install command uses
// it to confirm a candidate outline is buildable before committing it.
func VerifyInstall(ctx context.Context, env *Env, root string) problem.Problem {
	lock, err := registry.AcquireLock(env.Fs, env.Home)
	if err != nil {
		return &problem.CannotGetRegistry{Err: err}
	}
	defer lock.Release()

	out, perr := outline.Read(env.Fs, root)
	if perr != nil {
		return perr
	}
	_, _, _, perr = verifyDependencies(ctx, env, out)
	return perr
}

// generate runs the full pipeline: init the solver environment, read and
// verify the outline, solve, build every dependency, gather, and persist
// through the background writer.
func generate(ctx context.Context, env *Env, root string, newTime int64) (*Details, problem.Problem) {
	lock, err := registry.AcquireLock(env.Fs, env.Home)
	if err != nil {
		return nil, &problem.CannotGetRegistry{Err: err}
	}
	defer lock.Release()

	out, perr := outline.Read(env.Fs, root)
	if perr != nil {
		return nil, perr
	}

	valid, _, artifacts, perr := verifyDependencies(ctx, env, out)
	if perr != nil {
		return nil, perr
	}

	direct := directSet(out)
	interfaces := gatherInterfaces(artifacts, direct)
	foreigns := gatherForeigns(artifacts, direct)
	objects := gatherObjects(artifacts)

	details := &Details{
		OldTime:  newTime,
		Outline:  valid,
		BuildID:  0,
		Locals:   map[core.ModuleName]Local{},
		Foreigns: foreigns,
		Extras:   &Fresh{Ifaces: interfaces, Objects: objects},
	}

	err = stuff.WithWriter(env.Fs, func(w *stuff.Writer) error {
		w.Enqueue(stuff.ObjectsPath(root), func() ([]byte, error) {
			return EncodeObjects(&objects)
		})
		w.Enqueue(stuff.InterfacesPath(root), func() ([]byte, error) {
			return EncodeInterfaces(interfaces)
		})
		w.Enqueue(stuff.DetailsPath(root), func() ([]byte, error) {
			return Encode(details)
		})
		return nil
	})
	if err != nil {
		return nil, &problem.BadOutline{Reason: "could not persist build products: " + err.Error()}
	}

	env.logger().Debug("generated details", "packages", len(artifacts))
	return details, nil
}

// verifyDependencies dispatches on the outline variant, solves, and runs
// the dependency build fanout.
func verifyDependencies(ctx context.Context, env *Env, out outline.Outline) (outline.Valid, solver.Solution, map[core.PkgName]*build.Artifacts, problem.Problem) {
	solverEnv, client, perr := initEnv(ctx, env)
	if perr != nil {
		return nil, nil, nil, perr
	}

	var valid outline.Valid
	var solution solver.Solution
	var err error
	switch o := out.(type) {
	case *outline.AppOutline:
		solution, err = solver.AddToApp(ctx, solverEnv, o)
		valid = &outline.ValidApp{SrcDirs: o.SrcDirs}
	case *outline.PkgOutline:
		solution, err = solver.AddToPkg(ctx, solverEnv, o)
		if err == nil {
			valid = &outline.ValidPkg{
				Name:      o.Name,
				Exposed:   o.Exposed,
				ExactDeps: exactDeps(solution, o.Deps),
			}
		}
	}
	if err != nil {
		if p, ok := err.(problem.Problem); ok {
			return nil, nil, nil, p
		}
		return nil, nil, nil, &problem.SolverProblem{Err: err}
	}

	buildEnv := &build.Env{
		Fs:       env.Fs,
		Home:     env.Home,
		Client:   client,
		Compiler: env.Compiler,
		Logger:   env.Logger,
	}
	artifacts, perr := build.Dependencies(ctx, buildEnv, solution)
	if perr != nil {
		return nil, nil, nil, perr
	}
	return valid, solution, artifacts, nil
}

// initEnv prepares the solver environment: load the registry if present,
// otherwise refresh it over the network once. With no registry and no
// network the run proceeds offline against the unpacked package cache;
// [problem.CannotGetRegistry] is reserved for the case where even that is
// impossible.
func initEnv(ctx context.Context, env *Env) (*solver.Env, *registry.Client, problem.Problem) {
	client := registry.NewClient(env.registryBase(), env.responseCache(), env.CacheTTL)

	reg, found, err := registry.Read(env.Fs, env.Home)
	if err != nil {
		// Corrupt registry: drop it and refetch below.
		found = false
	}

	if env.Offline {
		if found {
			return &solver.Env{Fs: env.Fs, Home: env.Home, Registry: reg}, nil, nil
		}
		return offlineEnv(env)
	}

	if !found {
		reg, err = registry.Fetch(ctx, client, env.Fs, env.Home)
		if err != nil {
			env.logger().Debug("registry refresh failed, going offline", "err", err)
			return offlineEnvOr(env, err)
		}
	}

	return &solver.Env{Fs: env.Fs, Home: env.Home, Registry: reg, Client: client}, client, nil
}

// offlineEnv builds a solver env restricted to the unpacked package
// cache. Succeeds even on an empty cache: an outline with no dependencies
// still solves.
func offlineEnv(env *Env) (*solver.Env, *registry.Client, problem.Problem) {
	return &solver.Env{Fs: env.Fs, Home: env.Home}, nil, nil
}

// offlineEnvOr falls back to offline solving, unless the package cache has
// never been populated at all - then nothing can possibly solve and the
// registry failure is the real story.
func offlineEnvOr(env *Env, cause error) (*solver.Env, *registry.Client, problem.Problem) {
	if ok, _ := afero.DirExists(env.Fs, stuff.PackageCache(env.Home)); !ok {
		return nil, nil, &problem.CannotGetRegistry{Err: cause}
	}
	return offlineEnv(env)
}

// directSet collects the packages whose interfaces the project may import
// from: the direct dependency sections of the manifest.
func directSet(out outline.Outline) map[core.PkgName]bool {
	set := make(map[core.PkgName]bool)
	switch o := out.(type) {
	case *outline.AppOutline:
		for pkg := range o.Direct {
			set[pkg] = true
		}
		for pkg := range o.TestDirect {
			set[pkg] = true
		}
	case *outline.PkgOutline:
		for pkg := range o.Deps {
			set[pkg] = true
		}
		for pkg := range o.TestDeps {
			set[pkg] = true
		}
	}
	return set
}

// exactDeps restricts the solution to the declared direct dependencies,
// recording the exact version picked for each (kept for documentation
// tooling).
func exactDeps(solution solver.Solution, deps map[core.PkgName]core.Constraint) map[core.PkgName]core.Version {
	out := make(map[core.PkgName]core.Version, len(deps))
	for pkg := range deps {
		if pick, ok := solution[pkg]; ok {
			out[pkg] = pick.Version
		}
	}
	return out
}
