package mmapstore

import (
	"math/rand"
	"strconv"
	"testing"

	"policyrag/vectordb/storage"
)

func BenchmarkAppend(b *testing.B) {
	for _, size := range []int{256, 1024, 4096} {
		b.Run(strconv.Itoa(size), func(b *testing.B) {
			store, err := Open(b.TempDir())
			if err != nil {
				b.Fatalf("open: %v", err)
			}
			defer store.Close()
			payload := make([]byte, size)
			rand.Read(payload)

			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := store.Append(payload); err != nil {
					b.Fatalf("append: %v", err)
				}
			}
		})
	}
}

func BenchmarkRead(b *testing.B) {
	store, err := Open(b.TempDir())
	if err != nil {
		b.Fatalf("open: %v", err)
	}
	defer store.Close()

	const records = 4096
	payload := make([]byte, 1024)
	rand.Read(payload)
	ptrs := make([]storage.Ptr, records)
	for i := range ptrs {
		ptr, err := store.Append(payload)
		if err != nil {
			b.Fatalf("append: %v", err)
		}
		ptrs[i] = ptr
	}
	_ = store.Sync()

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Read(ptrs[i%records]); err != nil {
			b.Fatalf("read: %v", err)
		}
	}
}
