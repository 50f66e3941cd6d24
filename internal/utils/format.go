package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/iancoleman/orderedmap"
	"github.com/jedib0t/go-pretty/v6/table"
)

/**
 * Convert a struct into an ordered map keyed by its json tags
 * @param {any} v - Struct value or pointer
 * @returns {*orderedmap.OrderedMap} Map whose key order follows the struct fields
 * @returns {error} Returns error if v cannot be marshaled
 */
func StructToOrderedMap(v any) (*orderedmap.OrderedMap, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := orderedmap.New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

/**
 * Print rows as a table on stdout
 * @param {[]*orderedmap.OrderedMap} dataList - Rows, the first row's keys become the header
 */
func PrintFormat(dataList []*orderedmap.OrderedMap) {
	FprintFormat(os.Stdout, dataList)
}

// FprintFormat is PrintFormat with an explicit writer.
func FprintFormat(w io.Writer, dataList []*orderedmap.OrderedMap) {
	if len(dataList) == 0 {
		return
	}
	keys := dataList[0].Keys()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, 0, len(keys))
	for _, k := range keys {
		header = append(header, k)
	}
	t.AppendHeader(header)

	for _, m := range dataList {
		row := make(table.Row, 0, len(keys))
		for _, k := range keys {
			v, _ := m.Get(k)
			row = append(row, formatCell(v))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		if val == "" {
			return "-"
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}
