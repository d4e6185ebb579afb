package opt

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/cpu"
)

func TestCacheLineSize(t *testing.T) {
	if CacheLineSize_ == 0 || CacheLineSize_&(CacheLineSize_-1) != 0 {
		t.Fatalf("cache line size %d is not a power of two", CacheLineSize_)
	}
	t.Logf("CacheLineSize_=%d, cpu.CacheLinePad=%d", CacheLineSize_, unsafe.Sizeof(cpu.CacheLinePad{}))
}
