package ssd

import (
	"testing"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	ftltesting "github.com/ValentinKolb/ftlsim/lib/ftl/testing"
)

func factory(cfg ftl.Config) ftltesting.DeviceFactory {
	return func() ftl.Device {
		dev, err := New(cfg)
		if err != nil {
			panic(err)
		}
		return dev
	}
}

func Test(t *testing.T) {
	ftltesting.RunDeviceTests(t, "Line", factory(churnConfig(ftl.StrategyLine)))
	ftltesting.RunDeviceTests(t, "Placement", factory(churnConfig(ftl.StrategyPlacement)))

	persistent := churnConfig(ftl.StrategyPlacement)
	persistent.Isolation = ftl.IsolationPersistent
	ftltesting.RunDeviceTests(t, "PlacementPersistent", factory(persistent))

	channels := churnConfig(ftl.StrategyLine)
	channels.ModelChannelTransfer = true
	channels.ChannelTransferLatency = 10_000
	ftltesting.RunDeviceTests(t, "LineChannelTransfer", factory(channels))
}

func Benchmark(b *testing.B) {
	large := func(kind ftl.StrategyKind) ftl.Config {
		cfg := ftl.DefaultConfig()
		cfg.BlocksPerPlane = 32
		cfg.PagesPerBlock = 64
		cfg.Strategy = kind
		return cfg
	}
	ftltesting.RunDeviceBenchmarks(b, "Line", factory(large(ftl.StrategyLine)))
	ftltesting.RunDeviceBenchmarks(b, "Placement", factory(large(ftl.StrategyPlacement)))
}
