// Package kiln provides the resource lifecycle substrate of a game engine.
//
// A Core bundles the subsystems that every engine service shares:
//
//   - memory: categorized allocators (dynamic, linear, tracked) with global
//     per-category usage statistics
//   - registry: reference-counted resources keyed by string identifiers
//   - tracker: the per-resource loading state machine with blocking waits
//   - handle: generation-counted slot handles
//
// The loader package drives assets from a source.Source through the state
// machine and into the registry.
//
// # Quick Start
//
//	core, err := kiln.Open(kiln.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer core.Close()
//
//	l, _ := core.NewLoader(source.NewLocal("./assets"), loader.Raw())
//	e, err := l.Load(ctx, "textures/rock.png")
//	if err != nil {
//	    return err
//	}
//	defer core.Registry().Release(e)
//
// # Configuration
//
// LoadConfig reads a TOML file on top of DefaultConfig; Config.Options turns
// it into Open options:
//
//	cfg, err := kiln.LoadConfig("kiln.toml")
//	logger, err := kiln.NewLogger(cfg.Logging)
//	core, err := kiln.Open(append(cfg.Options(), kiln.WithLogger(logger))...)
//
// # Lifecycle
//
// Open initializes memory, then the registry, then the tracker, and unwinds
// on failure. Close shuts them down in reverse order. Resources still
// referenced at Close are reported as leaks and destroyed.
package kiln
