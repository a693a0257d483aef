// Package dataset supplies tabular input for augmentation: CSV loading and
// a synthetic grouped time-series generator. The dispatcher itself never
// performs I/O; these are the external collaborators feeding it.
package dataset

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tsforge/tsforge/pkg/table"
)

// LoadCSV reads a headered CSV file into a single Arrow record, inferring
// column types. Empty strings, "NA", and "NULL" are read as nulls. The
// caller must Release() the returned record.
func LoadCSV(alloc memory.Allocator, path string) (arrow.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	rdr := csv.NewInferringReader(f,
		csv.WithAllocator(alloc),
		csv.WithHeader(true),
		csv.WithChunk(-1),
		csv.WithNullReader(true, "", "NA", "NULL"),
	)
	defer rdr.Release()

	var records []arrow.Record
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		records = append(records, rec)
	}
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %s has no rows", path)
	}
	if len(records) == 1 {
		records[0].Retain()
		return records[0], nil
	}
	return table.Concatenate(alloc, records)
}
