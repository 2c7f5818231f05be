package graph

// Walk expands breadth-first from the seeds following next. Only nodes
// accepted by keep are emitted and expanded further, so a rejected node prunes
// its whole subtree. Seeds themselves are not emitted. A positive limit stops
// the walk as soon as that many nodes were emitted.
func Walk[T any, K comparable](seeds []T, key func(T) K, next func(T) []T, keep func(T) bool, limit int) []T {
	visited := make(map[K]struct{}, len(seeds))
	queue := make([]T, 0, len(seeds))
	for _, seed := range seeds {
		visited[key(seed)] = struct{}{}
		queue = append(queue, seed)
	}

	var out []T
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, candidate := range next(current) {
			k := key(candidate)
			if _, seen := visited[k]; seen {
				continue
			}
			visited[k] = struct{}{}
			if keep != nil && !keep(candidate) {
				continue
			}
			out = append(out, candidate)
			if limit > 0 && len(out) >= limit {
				return out
			}
			queue = append(queue, candidate)
		}
	}
	return out
}
