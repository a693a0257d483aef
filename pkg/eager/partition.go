package eager

import (
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/tsforge/tsforge/pkg/table"
)

// span is one group partition: the original row indices belonging to the
// group, ordered by the date column (nulls last, original index tiebreak).
type span struct {
	key  string // human-readable group key, "" when ungrouped
	rows []int
}

// partitions splits a record into date-ordered spans, one per distinct
// group-key combination, in first-seen order. With no group columns the
// whole record is a single span.
func partitions(rec arrow.Record, groupBy []string, dateColumn string) ([]span, error) {
	n := int(rec.NumRows())

	dateArr, err := table.Column(rec, dateColumn)
	if err != nil {
		return nil, err
	}
	dateKeys, err := table.NewOrderKeys(dateArr)
	if err != nil {
		return nil, err
	}

	var spans []span
	if len(groupBy) == 0 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		spans = []span{{rows: rows}}
	} else {
		groupArrs := make([]arrow.Array, len(groupBy))
		for i, name := range groupBy {
			arr, err := table.Column(rec, name)
			if err != nil {
				return nil, err
			}
			groupArrs[i] = arr
		}

		// First-seen order keeps partitioning deterministic. Non-null
		// components are length-prefixed so a value equal to the null token
		// or containing the separator cannot collide with another key.
		index := make(map[string]int)
		var raw, display []string
		for row := 0; row < n; row++ {
			raw = raw[:0]
			display = display[:0]
			for _, arr := range groupArrs {
				if arr.IsNull(row) {
					raw = append(raw, "\x00")
					display = append(display, "null")
					continue
				}
				s := arr.ValueStr(row)
				raw = append(raw, strconv.Itoa(len(s))+":"+s)
				display = append(display, s)
			}
			key := strings.Join(raw, "\x1f")
			si, ok := index[key]
			if !ok {
				si = len(spans)
				index[key] = si
				spans = append(spans, span{key: strings.Join(display, ",")})
			}
			spans[si].rows = append(spans[si].rows, row)
		}
	}

	for i := range spans {
		rows := spans[i].rows
		sort.SliceStable(rows, func(a, b int) bool {
			return dateKeys.Less(rows[a], rows[b])
		})
	}
	return spans, nil
}
