//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/tsforge/tsforge/pkg/table"
)

// Instance manages an isolated in-memory DuckDB database. The columnar
// backend creates one per call: registering the input record as a view and
// tearing the database down when the call returns keeps calls stateless.
type Instance struct {
	db          *sql.DB
	conn        *sql.Conn
	alloc       memory.Allocator
	memoryLimit int64
	releaseView func() // release function from the last RegisterView call
}

// NewInstance creates a new in-memory DuckDB instance with the given memory
// limit. Pass 0 for memoryLimit to use the default (256MB).
func NewInstance(alloc memory.Allocator, memoryLimit int64) (*Instance, error) {
	if memoryLimit == 0 {
		memoryLimit = 256 * 1024 * 1024
	}

	connector, err := goduckdb.NewConnector("", nil)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create connector: %w", err)
	}

	db := sql.OpenDB(connector)

	// Grab a persistent connection for Arrow operations.
	conn, err := db.Conn(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: get connection: %w", err)
	}

	limitMB := memoryLimit / (1024 * 1024)
	if limitMB < 1 {
		limitMB = 1
	}
	if _, err := conn.ExecContext(context.Background(), fmt.Sprintf("SET memory_limit='%dMB'", limitMB)); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("duckdb: set memory_limit: %w", err)
	}

	return &Instance{
		db:          db,
		conn:        conn,
		alloc:       alloc,
		memoryLimit: memoryLimit,
	}, nil
}

// Close destroys the DuckDB instance and releases all memory.
func (inst *Instance) Close() error {
	if inst.releaseView != nil {
		inst.releaseView()
		inst.releaseView = nil
	}
	if inst.conn != nil {
		inst.conn.Close()
	}
	if inst.db != nil {
		return inst.db.Close()
	}
	return nil
}

// RegisterView registers an Arrow record as a DuckDB view with the given
// name. This enables zero-copy data transfer from Arrow to DuckDB.
func (inst *Instance) RegisterView(rec arrow.Record, name string) error {
	// Release previous view if any.
	if inst.releaseView != nil {
		inst.releaseView()
		inst.releaseView = nil
	}

	return inst.conn.Raw(func(driverConn interface{}) error {
		arrowConn, err := goduckdb.NewArrowFromConn(driverConn.(driver.Conn))
		if err != nil {
			return fmt.Errorf("duckdb: arrow from conn: %w", err)
		}

		recRdr, err := array.NewRecordReader(rec.Schema(), []arrow.Record{rec})
		if err != nil {
			return fmt.Errorf("duckdb: create record reader: %w", err)
		}

		release, err := arrowConn.RegisterView(recRdr, name)
		if err != nil {
			return fmt.Errorf("duckdb: register view: %w", err)
		}
		inst.releaseView = release
		return nil
	})
}

// Query executes a SQL query and returns the result as a single Arrow
// record. The caller must Release() the result.
func (inst *Instance) Query(ctx context.Context, querySQL string) (arrow.Record, error) {
	var result arrow.Record
	err := inst.conn.Raw(func(driverConn interface{}) error {
		arrowConn, err := goduckdb.NewArrowFromConn(driverConn.(driver.Conn))
		if err != nil {
			return fmt.Errorf("duckdb: arrow from conn: %w", err)
		}

		rdr, err := arrowConn.QueryContext(ctx, querySQL)
		if err != nil {
			return fmt.Errorf("duckdb: query: %w", err)
		}
		defer rdr.Release()

		var records []arrow.Record
		for rdr.Next() {
			rec := rdr.Record()
			rec.Retain()
			records = append(records, rec)
		}
		if rdr.Err() != nil {
			for _, r := range records {
				r.Release()
			}
			return fmt.Errorf("duckdb: read results: %w", rdr.Err())
		}

		if len(records) == 0 {
			// A record built with a nil column slice panics on Column();
			// materialize zero-length arrays for every schema field.
			schema := rdr.Schema()
			cols := make([]arrow.Array, schema.NumFields())
			for i := 0; i < schema.NumFields(); i++ {
				bldr := array.NewBuilder(inst.alloc, schema.Field(i).Type)
				cols[i] = bldr.NewArray()
				bldr.Release()
			}
			result = array.NewRecord(schema, cols, 0)
			for _, c := range cols {
				c.Release()
			}
			return nil
		}

		if len(records) == 1 {
			result = records[0]
			return nil
		}

		result, err = table.Concatenate(inst.alloc, records)
		for _, r := range records {
			r.Release()
		}
		return err
	})

	return result, err
}
