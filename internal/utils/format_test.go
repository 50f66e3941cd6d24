package utils

import (
	"bytes"
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Target  string `json:"target"`
	Package string `json:"package"`
	Count   int    `json:"count"`
}

func TestStructToOrderedMap(t *testing.T) {
	m, err := StructToOrderedMap(row{Target: "linux_x86", Package: "gcc", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"target", "package", "count"}, m.Keys())
	v, ok := m.Get("package")
	assert.True(t, ok)
	assert.Equal(t, "gcc", v)
}

func TestFprintFormat(t *testing.T) {
	var rows []*orderedmap.OrderedMap
	for _, r := range []row{{"linux_x86", "gcc", 1}, {"mac_x86", "", 0}} {
		m, err := StructToOrderedMap(r)
		require.NoError(t, err)
		rows = append(rows, m)
	}
	var buf bytes.Buffer
	FprintFormat(&buf, rows)
	out := buf.String()
	assert.Contains(t, out, "TARGET")
	assert.Contains(t, out, "linux_x86")
	assert.Contains(t, out, "mac_x86")

	buf.Reset()
	FprintFormat(&buf, nil)
	assert.Empty(t, buf.String())
}
