package utils

func Filter[T any](src []T, predicate func(T) bool) []T {
	dst := make([]T, 0, len(src))
	for _, item := range src {
		if predicate(item) {
			dst = append(dst, item)
		}
	}
	return dst
}

func Map[T any, U any](src []T, mapper func(T) U) []U {
	dst := make([]U, 0, len(src))
	for _, item := range src {
		dst = append(dst, mapper(item))
	}
	return dst
}

// Find returns a pointer into slice, so callers can mutate the match in place.
func Find[T any](slice []T, predicate func(*T) bool) *T {
	for i := range slice {
		if predicate(&slice[i]) {
			return &slice[i]
		}
	}
	return nil
}

// Unique keeps the first occurrence of every key, preserving order.
func Unique[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Chunk splits src into consecutive slices of at most size elements.
func Chunk[T any](src []T, size int) [][]T {
	if size <= 0 {
		size = len(src)
	}
	var chunks [][]T
	for start := 0; start < len(src); start += size {
		end := start + size
		if end > len(src) {
			end = len(src)
		}
		chunks = append(chunks, src[start:end])
	}
	return chunks
}

// Paginate returns the 1-based page of items and the total count.
func Paginate[T any](items []T, page, pageSize int) ([]T, int) {
	total := len(items)
	if pageSize <= 0 {
		return items, total
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []T{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], total
}
