package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/memberopt/internal/domain"
)

// renderSummary 把 RunReport 汇总为一张按状态分行的表：数量、处理前/后总大小。
func renderSummary(rr domain.RunReport) string {
	type bucket struct {
		count         int
		before, after int64
	}
	buckets := map[string]*bucket{}
	for _, it := range rr.Items {
		if it.Path == "" {
			continue
		}
		b := buckets[it.Status]
		if b == nil {
			b = &bucket{}
			buckets[it.Status] = b
		}
		b.count++
		b.before += it.SizeBefore
		b.after += it.SizeAfter
	}

	rows := make([][]string, 0, 4)
	var total bucket
	for _, status := range []string{domain.StatusOptimized, domain.StatusPlanned, domain.StatusSkipped, domain.StatusFailed} {
		b := buckets[status]
		if b == nil {
			continue
		}
		rows = append(rows, []string{status, fmt.Sprint(b.count), formatMiB(b.before), formatMiB(b.after)})
		total.count += b.count
		total.before += b.before
		total.after += b.after
	}

	return renderTable(
		[]string{"状态", "文件数", "处理前", "处理后"},
		rows,
		[]string{"合计", fmt.Sprint(total.count), formatMiB(total.before), formatMiB(total.after)},
	)
}

func renderTable(headers []string, rows [][]string, footer []string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, columns))
	for _, row := range rows {
		tw.AppendRow(toRow(row, columns))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(footer, columns))
	}

	// 第一列是状态名，其余都是数值。
	configs := make([]table.ColumnConfig, 0, columns)
	for i := 1; i <= columns; i++ {
		align := text.AlignRight
		if i == 1 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func toRow(cells []string, columns int) table.Row {
	r := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		if i < len(cells) {
			r[i] = cells[i]
		} else {
			r[i] = ""
		}
	}
	return r
}

func formatMiB(n int64) string {
	return fmt.Sprintf("%.2f MB", domain.BytesToMiB(n))
}
