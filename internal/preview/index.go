package preview

// GlobalIndex maps a 1-based page and a 0-based offset within it to the row's
// position in the full, unpaginated result set.
func GlobalIndex(page, offset, size int) int {
	return (page-1)*size + offset
}

// Locate is the inverse of GlobalIndex.
func Locate(index, size int) (page, offset int) {
	return index/size + 1, index % size
}

// PageCount returns the number of pages needed to show total rows.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
