package report

import (
	"errors"
	"fmt"
)

// ErrNothingToMerge is returned when Merge receives no charts.
var ErrNothingToMerge = errors.New("no chunk results to merge")

// taskKey identifies a task across chunk boundaries.
type taskKey struct {
	title  string
	entity string
}

// Merge combines per-chunk charts, in order, into one chart.
//
// Time labels keep first-seen order, tasks are deduplicated on (title, entity)
// with the first occurrence winning, and legend entries are unioned by color.
// Bars from later charts are remapped onto the merged time axis by label.
func Merge(charts []*Chart) (*Chart, error) {
	if len(charts) == 0 {
		return nil, ErrNothingToMerge
	}
	for i, c := range charts {
		if c == nil {
			return nil, fmt.Errorf("%w: chunk %d has no result", ErrNothingToMerge, i)
		}
	}

	merged := &Chart{
		Title:       charts[0].Title,
		TimeColumns: make([]string, 0, len(charts[0].TimeColumns)),
		Data:        make([]Task, 0, len(charts[0].Data)),
		Legend:      make([]LegendItem, 0, len(charts[0].Legend)),
	}
	columns := make(map[string]int)
	seenTasks := make(map[taskKey]struct{})
	seenColors := make(map[string]struct{})

	for _, c := range charts {
		if merged.Title == "" {
			merged.Title = c.Title
		}

		remap := make([]int, len(c.TimeColumns))
		for i, label := range c.TimeColumns {
			idx, ok := columns[label]
			if !ok {
				idx = len(merged.TimeColumns)
				columns[label] = idx
				merged.TimeColumns = append(merged.TimeColumns, label)
			}
			remap[i] = idx
		}

		for _, task := range c.Data {
			key := taskKey{title: task.Title, entity: task.Entity}
			if _, dup := seenTasks[key]; dup {
				continue
			}
			seenTasks[key] = struct{}{}
			merged.Data = append(merged.Data, remapTask(task, remap))
		}

		for _, item := range c.Legend {
			if _, dup := seenColors[item.Color]; dup {
				continue
			}
			seenColors[item.Color] = struct{}{}
			merged.Legend = append(merged.Legend, item)
		}
	}

	return merged, nil
}

func remapTask(task Task, remap []int) Task {
	if task.Bar == nil {
		return task
	}
	bar := *task.Bar
	if bar.StartCol >= 0 && bar.StartCol < len(remap) {
		bar.StartCol = remap[bar.StartCol]
	}
	if bar.EndCol >= 0 && bar.EndCol < len(remap) {
		bar.EndCol = remap[bar.EndCol]
	}
	task.Bar = &bar
	return task
}
