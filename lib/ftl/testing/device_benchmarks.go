package testing

import (
	"math/rand"
	"testing"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
)

// RunDeviceBenchmarks runs all benchmarks for a device implementation
func RunDeviceBenchmarks(b *testing.B, name string, factory DeviceFactory) {
	b.Run(name+"/SequentialWrite", func(b *testing.B) {
		benchmarkSequentialWrite(b, factory())
	})

	b.Run(name+"/RandomWrite", func(b *testing.B) {
		benchmarkRandomWrite(b, factory())
	})

	b.Run(name+"/Read", func(b *testing.B) {
		benchmarkRead(b, factory())
	})

	b.Run(name+"/MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for single page writes walking a fixed window of LPNs
func benchmarkSequentialWrite(b *testing.B, dev ftl.Device) {
	b.Cleanup(dev.Close)
	span := uint64(liveSpan(dev))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		now := int64(i) * 1_000
		if _, err := dev.Write(uint64(i)%span, 1, now, nil); err != nil {
			b.Fatal(err)
		}
		dev.BackgroundGC(now)
	}
}

// Benchmark for uniformly random single page writes
func benchmarkRandomWrite(b *testing.B, dev ftl.Device) {
	b.Cleanup(dev.Close)
	span := liveSpan(dev)
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		now := int64(i) * 1_000
		if _, err := dev.Write(uint64(rng.Int63n(span)), 1, now, nil); err != nil {
			b.Fatal(err)
		}
		dev.BackgroundGC(now)
	}
}

// Benchmark for reads of mapped pages
func benchmarkRead(b *testing.B, dev ftl.Device) {
	b.Cleanup(dev.Close)
	span := uint64(liveSpan(dev))
	if _, err := dev.Write(0, span, 0, nil); err != nil {
		b.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dev.Read(uint64(rng.Int63n(int64(span))), 1, int64(i)*1_000); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for a 70/30 write/read mix over a hot and a cold region
func benchmarkMixedUsage(b *testing.B, dev ftl.Device) {
	b.Cleanup(dev.Close)
	span := liveSpan(dev)
	hot := max(span/10, 1)
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		now := int64(i) * 1_000
		lpn := uint64(rng.Int63n(span))
		if i%5 != 0 {
			lpn = uint64(rng.Int63n(hot))
		}
		var err error
		if i%10 < 7 {
			_, err = dev.Write(lpn, 1, now, nil)
		} else {
			_, err = dev.Read(lpn, 1, now)
		}
		if err != nil {
			b.Fatal(err)
		}
		dev.BackgroundGC(now)
	}
}
