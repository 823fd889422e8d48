package main

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-bridge/view"
)

// rowBytes is the number of bytes shown per row for every kind.
const rowBytes = 16

// formatRows renders values as rows of rowBytes bytes, each prefixed by the
// byte offset of its first element.
func formatRows(values []int64, kind view.Kind, byteOffset uint64) []string {
	size := int(kind.Size())
	perRow := rowBytes / size
	width := valueWidth(kind)

	var rows []string
	for start := 0; start < len(values); start += perRow {
		end := min(start+perRow, len(values))
		var b strings.Builder
		fmt.Fprintf(&b, "%08x ", byteOffset+uint64(start*size))
		for _, v := range values[start:end] {
			fmt.Fprintf(&b, " %*d", width, v)
		}
		rows = append(rows, b.String())
	}
	return rows
}

// valueWidth is the widest decimal rendering of a kind's values.
func valueWidth(kind view.Kind) int {
	switch kind {
	case view.Int8:
		return 4
	case view.Uint8:
		return 3
	case view.Int16:
		return 6
	case view.Uint16:
		return 5
	case view.Int32:
		return 11
	}
	return 10
}

// nextKind cycles through the view kinds.
func nextKind(k view.Kind) view.Kind {
	for i, kind := range view.Kinds {
		if kind == k {
			return view.Kinds[(i+1)%len(view.Kinds)]
		}
	}
	return view.Kinds[0]
}
