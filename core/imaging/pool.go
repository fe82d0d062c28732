package imaging

import (
	"bytes"
	"context"
	"os"

	"golang.org/x/sync/errgroup"
)

// Item is one image to normalize.
type Item struct {
	Name string
	Data []byte
}

// Result is the outcome of one Item, at the same index as its input.
type Result struct {
	Name    string
	Data    []byte // resized data, or the input when unchanged or failed
	Changed bool
	Err     error
}

// Pool runs a Resizer over many images with at most Workers in flight. An
// item's failure is recorded in its Result and never cancels the others.
type Pool struct {
	Resizer  Resizer
	Workers  int
	MaxWidth int
	Quality  int

	// OnResult, when set, is called once per finished item, possibly from
	// several goroutines at once.
	OnResult func(Result)
}

// NewPool returns a pool using r, or DrawResizer when r is nil.
func NewPool(r Resizer, workers, maxWidth, quality int) *Pool {
	if r == nil {
		r = DrawResizer{}
	}
	if workers < 1 {
		workers = 1
	}
	return &Pool{Resizer: r, Workers: workers, MaxWidth: maxWidth, Quality: quality}
}

// Run processes items and returns the results in input order once every
// worker has finished.
func (p *Pool) Run(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, it := range items {
		g.Go(func() error {
			res := Result{Name: it.Name, Data: it.Data}
			if err := gctx.Err(); err != nil {
				res.Err = err
			} else if out, err := p.Resizer.Resize(gctx, it.Data, p.MaxWidth, p.Quality); err != nil {
				res.Err = err
			} else {
				res.Data = out
				res.Changed = !bytes.Equal(out, it.Data)
			}
			results[i] = res
			if p.OnResult != nil {
				p.OnResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// NormalizeFiles resizes the image files at paths in place. The returned
// slice holds one error (or nil) per path.
func (p *Pool) NormalizeFiles(ctx context.Context, paths []string) []error {
	errs := make([]error, len(paths))
	items := make([]Item, 0, len(paths))
	index := make([]int, 0, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs[i] = err
			continue
		}
		items = append(items, Item{Name: path, Data: data})
		index = append(index, i)
	}
	for j, res := range p.Run(ctx, items) {
		i := index[j]
		if res.Err != nil {
			errs[i] = res.Err
			continue
		}
		if res.Changed {
			errs[i] = os.WriteFile(res.Name, res.Data, 0644)
		}
	}
	return errs
}

func (p *Pool) workers() int {
	if p.Workers < 1 {
		return 1
	}
	return p.Workers
}
