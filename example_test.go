package kiln_test

import (
	"context"
	"fmt"

	"github.com/hupe1980/kiln"
	"github.com/hupe1980/kiln/loader"
	"github.com/hupe1980/kiln/memory"
	"github.com/hupe1980/kiln/source"
)

func Example() {
	core, err := kiln.Open(kiln.WithHeapLinear())
	if err != nil {
		panic(err)
	}
	defer core.Close()

	assets := source.NewMemory()
	assets.Put("tex/rock", []byte("rock pixels"))

	l, err := core.NewLoader(assets, loader.Raw())
	if err != nil {
		panic(err)
	}

	e, err := l.Load(context.Background(), "tex/rock")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(e.Payload().([]byte)), e.Count())
	fmt.Println(core.Tracker().IsSafeToAccess("tex/rock"))
	fmt.Println(core.Stats().Memory.Category(memory.CategoryAssets).CurrentUsage)

	_ = core.Registry().Release(e)
	_ = l.UnloadAll()
	fmt.Println(core.Registry().Exists("tex/rock"))

	// Output:
	// rock pixels 2
	// true
	// 11
	// false
}
