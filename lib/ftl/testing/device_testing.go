package testing

import (
	"math/rand"
	"testing"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
)

// DeviceFactory is a function that creates a new, empty device
type DeviceFactory func() ftl.Device

// RunDeviceTests runs the conformance suite against devices created by factory
func RunDeviceTests(t *testing.T, name string, factory DeviceFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("ReadUnmapped", func(t *testing.T) {
			testReadUnmapped(t, factory())
		})

		t.Run("WriteRead", func(t *testing.T) {
			testWriteRead(t, factory())
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory())
		})

		t.Run("Submit", func(t *testing.T) {
			testSubmit(t, factory())
		})

		t.Run("OutOfRange", func(t *testing.T) {
			testOutOfRange(t, factory())
		})

		t.Run("ForcedGC", func(t *testing.T) {
			testForcedGC(t, factory())
		})

		t.Run("BackgroundGC", func(t *testing.T) {
			testBackgroundGC(t, factory())
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustWrite(t testing.TB, dev ftl.Device, start, count uint64, now int64) int64 {
	t.Helper()
	lat, err := dev.Write(start, count, now, nil)
	if err != nil {
		t.Fatalf("write [%d, %d) failed: %v", start, start+count, err)
	}
	return lat
}

// liveSpan is the number of LPNs the randomized tests keep live: an eighth of
// the capacity of one reclaim group, since untagged writes all land in group 0
func liveSpan(dev ftl.Device) int64 {
	info := dev.Info()
	return max(int64(info.TotalPages/(8*len(info.FreeUnits))), 1)
}

func requireConsistent(t testing.TB, dev ftl.Device) {
	t.Helper()
	if err := dev.CheckConsistency(); err != nil {
		t.Fatalf("device inconsistent: %v", err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testReadUnmapped(t *testing.T, dev ftl.Device) {
	defer dev.Close()

	lat, err := dev.Read(0, 8, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if lat != 0 {
		t.Errorf("Expected unmapped read to cost nothing, got %d ns", lat)
	}
	if got := dev.Stats().HostPagesRead; got != 0 {
		t.Errorf("Expected no host page reads, got %d", got)
	}
}

func testWriteRead(t *testing.T, dev ftl.Device) {
	defer dev.Close()

	if lat := mustWrite(t, dev, 10, 4, 0); lat <= 0 {
		t.Errorf("Expected positive write latency, got %d", lat)
	}

	lat, err := dev.Read(10, 4, 1_000_000_000)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if lat <= 0 {
		t.Errorf("Expected positive read latency, got %d", lat)
	}

	st := dev.Stats()
	if st.HostPagesWritten != 4 || st.HostPagesRead != 4 {
		t.Errorf("Expected 4 pages written and read, got %d and %d", st.HostPagesWritten, st.HostPagesRead)
	}
	if got := dev.Info().MappedPages; got != 4 {
		t.Errorf("Expected 4 mapped pages, got %d", got)
	}
	requireConsistent(t, dev)
}

func testOverwrite(t *testing.T, dev ftl.Device) {
	defer dev.Close()

	for i := 0; i < 5; i++ {
		mustWrite(t, dev, 0, 3, int64(i)*1_000_000)
	}
	if got := dev.Info().MappedPages; got != 3 {
		t.Errorf("Expected overwrites to keep 3 mapped pages, got %d", got)
	}
	if got := dev.Stats().HostPagesWritten; got != 15 {
		t.Errorf("Expected 15 host pages written, got %d", got)
	}
	requireConsistent(t, dev)
}

func testSubmit(t *testing.T, dev ftl.Device) {
	defer dev.Close()

	lat, err := dev.Submit(ftl.Request{Op: ftl.OpWrite, StartLPN: 1, Count: 2})
	if err != nil || lat <= 0 {
		t.Errorf("Expected write to succeed with positive latency, got %d, %v", lat, err)
	}

	lat, err = dev.Submit(ftl.Request{Op: ftl.OpRead, StartLPN: 1, Count: 2, IssueTime: 1_000_000_000})
	if err != nil || lat <= 0 {
		t.Errorf("Expected read to succeed with positive latency, got %d, %v", lat, err)
	}

	lat, err = dev.Submit(ftl.Request{Op: ftl.OpNoOp})
	if err != nil || lat != 0 {
		t.Errorf("Expected no-op to complete immediately, got %d, %v", lat, err)
	}

	_, err = dev.Submit(ftl.Request{Op: ftl.OpCode(200), Count: 1})
	if !ftl.IsCode(err, ftl.RetCUnsupportedOperation) {
		t.Errorf("Expected unsupported operation error, got %v", err)
	}
}

func testOutOfRange(t *testing.T, dev ftl.Device) {
	defer dev.Close()

	total := uint64(dev.Info().TotalPages)
	if _, err := dev.Write(total-1, 2, 0, nil); !ftl.IsCode(err, ftl.RetCOutOfRange) {
		t.Errorf("Expected out of range error for write past the end, got %v", err)
	}
	if _, err := dev.Read(total, 1, 0); !ftl.IsCode(err, ftl.RetCOutOfRange) {
		t.Errorf("Expected out of range error for read past the end, got %v", err)
	}
	if got := dev.Stats().HostPagesWritten; got != 0 {
		t.Errorf("Expected rejected write to leave no trace, got %d pages written", got)
	}

	mustWrite(t, dev, total-1, 1, 0)
	requireConsistent(t, dev)
}

func testForcedGC(t *testing.T, dev ftl.Device) {
	defer dev.Close()

	n := uint64(dev.Info().PagesPerUnit)
	mustWrite(t, dev, 0, n, 0)
	mustWrite(t, dev, 0, n, 0)
	before := dev.Info()

	if got := dev.CollectGarbage(true, 0); got < 1 {
		t.Fatalf("Expected a fully invalidated unit to be reclaimed, got %d", got)
	}
	after := dev.Info()
	if after.MappedPages != before.MappedPages {
		t.Errorf("Expected GC to keep %d mapped pages, got %d", before.MappedPages, after.MappedPages)
	}
	if after.FreeUnits[0] <= before.FreeUnits[0] {
		t.Errorf("Expected free units of group 0 to grow, got %d -> %d", before.FreeUnits[0], after.FreeUnits[0])
	}
	if st := dev.Stats(); st.ForcedGCPasses < 1 || st.BlocksErased == 0 {
		t.Errorf("Expected forced GC pass with erases, got %+v", st)
	}

	// nothing left to reclaim
	if got := dev.CollectGarbage(true, 0); got != 0 {
		t.Errorf("Expected no victim after GC, got %d reclaimed", got)
	}
	requireConsistent(t, dev)
}

func testBackgroundGC(t *testing.T, dev ftl.Device) {
	defer dev.Close()

	// with plenty of free units background GC must not run
	mustWrite(t, dev, 0, 1, 0)
	mustWrite(t, dev, 0, 1, 0)
	dev.BackgroundGC(0)
	if got := dev.Stats().BackgroundGCPasses; got != 0 {
		t.Errorf("Expected no background GC on an empty device, got %d passes", got)
	}
}

func testClose(t *testing.T, dev ftl.Device) {
	mustWrite(t, dev, 0, 1, 0)
	dev.Close()

	if _, err := dev.Write(0, 1, 0, nil); !ftl.IsCode(err, ftl.RetCInvalidOperation) {
		t.Errorf("Expected invalid operation after close, got %v", err)
	}
	if _, err := dev.Read(0, 1, 0); !ftl.IsCode(err, ftl.RetCInvalidOperation) {
		t.Errorf("Expected invalid operation after close, got %v", err)
	}
}

func testRealisticUsage(t *testing.T, dev ftl.Device) {
	defer dev.Close()

	info := dev.Info()
	span := liveSpan(dev)
	rng := rand.New(rand.NewSource(7))
	model := make(map[uint64]bool)

	numOperations := 20 * info.TotalPages
	var now int64
	for i := 0; i < numOperations; i++ {
		now += 5_000
		lpn := uint64(rng.Int63n(span))
		switch i % 10 {
		case 0, 1, 2:
			if _, err := dev.Read(lpn, 1, now); err != nil {
				t.Fatalf("read %d failed: %v", lpn, err)
			}
		default:
			mustWrite(t, dev, lpn, 1, now)
			model[lpn] = true
		}
		dev.BackgroundGC(now)

		if i%(numOperations/10) == 0 {
			requireConsistent(t, dev)
		}
	}
	requireConsistent(t, dev)

	if got := dev.Info().MappedPages; got != len(model) {
		t.Errorf("Expected %d mapped pages, got %d", len(model), got)
	}
	st := dev.Stats()
	if st.BlocksErased == 0 {
		t.Errorf("Expected the workload to trigger GC")
	}
	if st.WriteAmplification < 1 {
		t.Errorf("Expected write amplification >= 1, got %f", st.WriteAmplification)
	}
}
