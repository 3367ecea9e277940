package functional

func Map[T, V any](slice []T, f func(T) V) []V {
	result := make([]V, len(slice))
	for i, v := range slice {
		result[i] = f(v)
	}

	return result
}

func Filter[T any](slice []T, keep func(T) bool) []T {
	result := []T{}
	for _, v := range slice {
		if keep(v) {
			result = append(result, v)
		}
	}
	return result
}
