//go:build champ_cachelinesize_128

package opt

// CacheLineSize_ is forced to 128 bytes (e.g. Apple M-series, POWER).
// Use: go build -tags=champ_cachelinesize_128
const CacheLineSize_ = 128
