package source

import (
	"context"
	"sort"

	"github.com/meltworks/stagehand/pkg/adapter"
)

// VerifyResult reports the outcome of probing one declared table.
type VerifyResult struct {
	Namespace string
	Table     string
	Relation  string
	Exists    bool
	Columns   int
	Rows      int64
	Err       error
}

// Verify probes every declared table against the warehouse and reports
// which relations exist. A missing relation is a result, not an error;
// only the probe itself can fail.
func (c *Catalog) Verify(ctx context.Context, db adapter.Adapter) []VerifyResult {
	var results []VerifyResult
	for _, ns := range c.Namespaces() {
		for _, tbl := range ns.Tables {
			rel, err := c.Resolve(ns.Name, tbl.Name)
			if err != nil {
				results = append(results, VerifyResult{Namespace: ns.Name, Table: tbl.Name, Err: err})
				continue
			}

			res := VerifyResult{
				Namespace: ns.Name,
				Table:     tbl.Name,
				Relation:  rel.Qualified(),
			}
			meta, err := db.TableMetadata(ctx, rel.Qualified())
			if err != nil {
				res.Exists = false
				res.Err = err
			} else {
				res.Exists = true
				res.Columns = len(meta.Columns)
				res.Rows = meta.RowCount
			}
			results = append(results, res)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Namespace != results[j].Namespace {
			return results[i].Namespace < results[j].Namespace
		}
		return results[i].Table < results[j].Table
	})
	return results
}
