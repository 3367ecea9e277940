package cache

const (
	CacheVersion            = "v1"
	PositionEntryKeyPattern = CacheVersion + ":position:%s:%s:%s"
	RetryLeaseKeyPattern    = CacheVersion + ":retry:lease:%s"
)
