package preview

const maxGridColumns = 3

// Grid returns the column and row count for n previews: at most three
// columns, filled row by row.
func Grid(n int) (cols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	cols = min(maxGridColumns, n)
	rows = (n + cols - 1) / cols
	return cols, rows
}

// Column is the zero-based column of the item at index idx.
func Column(idx, cols int) int {
	if cols <= 0 {
		return 0
	}
	return idx % cols
}
