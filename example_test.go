package prcache_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/codeGROOVE-dev/prcache"
	"github.com/codeGROOVE-dev/prcache/pkg/store/compress"
)

type Pull struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

func ExampleCache_basic() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "prcache-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck // best-effort cleanup

	cache, err := prcache.New[[]Pull](ctx, prcache.WithDir(dir))
	if err != nil {
		panic(err)
	}
	defer cache.Close() //nolint:errcheck // example

	// Store a value with a five minute TTL
	cache.Set(ctx, "repos/octo/app/pulls", []Pull{{Number: 42, Title: "Add sidebar"}}, 5*time.Minute)

	// Retrieve it
	pulls, found := cache.Get(ctx, "repos/octo/app/pulls")
	if found {
		fmt.Printf("#%d %s\n", pulls[0].Number, pulls[0].Title)
	}

	// Output: #42 Add sidebar
}

func ExampleCache_GetOrSet() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "prcache-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck // best-effort cleanup

	cache, err := prcache.New[int](ctx, prcache.WithDir(dir))
	if err != nil {
		panic(err)
	}
	defer cache.Close() //nolint:errcheck // example

	fetches := 0
	load := func(context.Context) (int, error) {
		fetches++
		return 17, nil
	}

	for range 3 {
		n, err := cache.GetOrSet(ctx, "repos/octo/app/open_count", load, time.Minute)
		if err != nil {
			panic(err)
		}
		fmt.Println(n)
	}
	fmt.Println("fetches:", fetches)

	// Output:
	// 17
	// 17
	// 17
	// fetches: 1
}

func ExampleCache_Stats() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "prcache-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck // best-effort cleanup

	// Small cap with compressed payload files
	cache, err := prcache.New[string](ctx,
		prcache.WithDir(dir),
		prcache.WithMaxSize(20),
		prcache.WithCompressor(compress.S2()),
	)
	if err != nil {
		panic(err)
	}
	defer cache.Close() //nolint:errcheck // example

	cache.Set(ctx, "a", "12345678", 0) // 10 bytes of JSON
	cache.Set(ctx, "b", "12345678", 0)
	cache.Set(ctx, "c", "12345678", 0) // evicts a

	s := cache.Stats()
	fmt.Printf("%d entries, %d/%d bytes\n", s.EntryCount, s.TotalSizeBytes, s.MaxSizeBytes)
	fmt.Println(cache.Keys())

	// Output:
	// 2 entries, 20/20 bytes
	// [b c]
}
