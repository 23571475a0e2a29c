package infer

import (
	"github.com/RoaringBitmap/roaring"
)

// Context is a bitmap incidence table of which samples carry which
// property paths. Column-major: each path has a bitmap of samples.
type Context struct {
	Samples int
	Paths   []string // first-seen order
	columns []*roaring.Bitmap
	index   map[string]int
}

func newContext() *Context {
	return &Context{index: make(map[string]int)}
}

func (c *Context) add(sample int, path string) {
	j, ok := c.index[path]
	if !ok {
		j = len(c.Paths)
		c.index[path] = j
		c.Paths = append(c.Paths, path)
		c.columns = append(c.columns, roaring.New())
	}
	c.columns[j].Add(uint32(sample))
}

// Extent returns the samples carrying path. The result must not be
// modified.
func (c *Context) Extent(path string) *roaring.Bitmap {
	if j, ok := c.index[path]; ok {
		return c.columns[j]
	}
	return roaring.New()
}

// Closure returns every path carried by all samples that carry each of
// paths, in first-seen order. The closure of no paths is the set common
// to every sample.
func (c *Context) Closure(paths ...string) []string {
	extent := roaring.New()
	extent.AddRange(0, uint64(c.Samples))
	for _, p := range paths {
		extent.And(c.Extent(p))
	}
	var out []string
	for j, col := range c.columns {
		if extent.AndCardinality(col) == extent.GetCardinality() {
			out = append(out, c.Paths[j])
		}
	}
	return out
}

// Optional returns the paths missing from at least one sample.
func (c *Context) Optional() []string {
	var out []string
	for j, col := range c.columns {
		if col.GetCardinality() < uint64(c.Samples) {
			out = append(out, c.Paths[j])
		}
	}
	return out
}
