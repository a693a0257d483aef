package eager

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tsforge/tsforge/pkg/augment"
	"github.com/tsforge/tsforge/pkg/table"
)

// resample builds the summarized table: one row per (group, bucket), groups
// in first-seen input order, buckets ascending within each group. Rows with
// a null date are dropped.
func (e *Engine) resample(alloc memory.Allocator, rec arrow.Record, plan *augment.Plan) (arrow.Record, error) {
	spans, err := partitions(rec, plan.GroupBy, plan.DateColumn)
	if err != nil {
		return nil, err
	}

	dateArr, err := table.Column(rec, plan.DateColumn)
	if err != nil {
		return nil, err
	}
	buckets, err := bucketStarts(dateArr, plan.Freq)
	if err != nil {
		return nil, err
	}

	sources, err := extractSources(rec, plan)
	if err != nil {
		return nil, err
	}

	groupArrs := make([]arrow.Array, len(plan.GroupBy))
	groupBldrs := make([]array.Builder, len(plan.GroupBy))
	for i, name := range plan.GroupBy {
		arr, err := table.Column(rec, name)
		if err != nil {
			return nil, err
		}
		groupArrs[i] = arr
		groupBldrs[i] = array.NewBuilder(alloc, arr.DataType())
		defer groupBldrs[i].Release()
	}
	dateBldr := array.NewTimestampBuilder(alloc, arrow.FixedWidthTypes.Timestamp_us.(*arrow.TimestampType))
	defer dateBldr.Release()
	outBldrs := make([]*array.Float64Builder, len(plan.Outputs))
	for i := range plan.Outputs {
		outBldrs[i] = array.NewFloat64Builder(alloc)
		defer outBldrs[i].Release()
	}

	var window []float64
	var rows int64
	for _, sp := range spans {
		// Rows are date-sorted, so equal buckets form contiguous runs and
		// null dates trail at the end.
		for start := 0; start < len(sp.rows); {
			anchor := sp.rows[start]
			if dateArr.IsNull(anchor) {
				break
			}
			bucket := buckets[anchor]
			end := start + 1
			for end < len(sp.rows) && !dateArr.IsNull(sp.rows[end]) && buckets[sp.rows[end]] == bucket {
				end++
			}

			for i, arr := range groupArrs {
				if arr.IsNull(anchor) {
					groupBldrs[i].AppendNull()
					continue
				}
				if err := table.AppendValue(groupBldrs[i], arr, anchor); err != nil {
					return nil, err
				}
			}
			dateBldr.Append(arrow.Timestamp(bucket))

			for oi, out := range plan.Outputs {
				src := sources[out.Column]
				window = window[:0]
				for p := start; p < end; p++ {
					r := sp.rows[p]
					if src.valid[r] && !math.IsNaN(src.values[r]) {
						window = append(window, src.values[r])
					}
				}
				if len(window) < plan.MinPeriods {
					outBldrs[oi].AppendNull()
					continue
				}
				v, ok, err := out.Func.Reduce(window)
				if err != nil {
					return nil, &augment.ComputationError{
						Column: out.Name,
						Group:  sp.key,
						Row:    anchor,
						Err:    err,
					}
				}
				if ok {
					outBldrs[oi].Append(v)
				} else {
					outBldrs[oi].AppendNull()
				}
			}

			rows++
			start = end
		}
	}

	fields := make([]arrow.Field, 0, len(plan.GroupBy)+1+len(plan.Outputs))
	arrays := make([]arrow.Array, 0, cap(fields))
	for i, name := range plan.GroupBy {
		fields = append(fields, arrow.Field{Name: name, Type: groupArrs[i].DataType(), Nullable: true})
		arrays = append(arrays, groupBldrs[i].NewArray())
	}
	fields = append(fields, arrow.Field{Name: plan.DateColumn, Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true})
	arrays = append(arrays, dateBldr.NewArray())
	for i, out := range plan.Outputs {
		fields = append(fields, arrow.Field{Name: out.Name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
		arrays = append(arrays, outBldrs[i].NewArray())
	}

	out := array.NewRecord(arrow.NewSchema(fields, nil), arrays, rows)
	for _, a := range arrays {
		a.Release()
	}
	return out, nil
}

// bucketStarts truncates every date cell to its bucket start, in microseconds
// since epoch UTC. Null cells are left zero; callers skip them.
func bucketStarts(arr arrow.Array, freq augment.Freq) ([]int64, error) {
	n := arr.Len()
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			continue
		}
		var t time.Time
		switch a := arr.(type) {
		case *array.Timestamp:
			t = a.Value(i).ToTime(a.DataType().(*arrow.TimestampType).Unit)
		case *array.Date32:
			t = a.Value(i).ToTime()
		case *array.Date64:
			t = a.Value(i).ToTime()
		default:
			return nil, fmt.Errorf("eager: column type %s cannot be resampled", arr.DataType())
		}
		out[i] = bucketStart(t.UTC(), freq).UnixMicro()
	}
	return out, nil
}

// bucketStart truncates a UTC instant to the calendar bucket containing it,
// matching SQL date_trunc (weeks start on Monday).
func bucketStart(t time.Time, freq augment.Freq) time.Time {
	switch freq {
	case augment.FreqMinute:
		return t.Truncate(time.Minute)
	case augment.FreqHour:
		return t.Truncate(time.Hour)
	case augment.FreqDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case augment.FreqWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	case augment.FreqMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case augment.FreqQuarter:
		month := time.Month(((int(t.Month())-1)/3)*3 + 1)
		return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
	default: // FreqYear
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
}
