package nand

import (
	"testing"
	"time"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/stretchr/testify/assert"
)

func smallConfig() ftl.Config {
	cfg := ftl.DefaultConfig()
	cfg.Channels = 2
	cfg.DiesPerChannel = 2
	cfg.PlanesPerDie = 1
	cfg.BlocksPerPlane = 4
	cfg.PagesPerBlock = 4
	cfg.PageReadLatency = 40 * time.Microsecond
	cfg.PageWriteLatency = 200 * time.Microsecond
	cfg.BlockEraseLatency = 2 * time.Millisecond
	cfg.ChannelTransferLatency = 10 * time.Microsecond
	return cfg
}

const (
	us = int64(time.Microsecond)
	ms = int64(time.Millisecond)
)

func TestTiming_SameDieSerializes(t *testing.T) {
	cfg := smallConfig()
	tm := NewTiming(&cfg)
	ppa := ftl.NewPPA(0, 0, 0, 0, 0)

	assert.Equal(t, 200*us, tm.Advance(ppa, OpWrite, 0))
	// second write on the same die waits for the first
	assert.Equal(t, 400*us, tm.Advance(ppa.WithPage(1), OpWrite, 0))
	// a read issued later only waits for the remaining busy time
	assert.Equal(t, 100*us+40*us, tm.Advance(ppa, OpRead, 300*us))
	assert.Equal(t, 440*us, tm.DieAvailable(ppa))
}

func TestTiming_DiesAreIndependent(t *testing.T) {
	cfg := smallConfig()
	tm := NewTiming(&cfg)

	assert.Equal(t, 200*us, tm.Advance(ftl.NewPPA(0, 0, 0, 0, 0), OpWrite, 0))
	assert.Equal(t, 200*us, tm.Advance(ftl.NewPPA(0, 1, 0, 0, 0), OpWrite, 0))
	assert.Equal(t, 200*us, tm.Advance(ftl.NewPPA(1, 0, 0, 0, 0), OpWrite, 0))
	assert.Equal(t, 2*ms, tm.Advance(ftl.NewPPA(1, 1, 0, 0, 0), OpErase, 0))
}

func TestTiming_IdleDieStartsAtIssueTime(t *testing.T) {
	cfg := smallConfig()
	tm := NewTiming(&cfg)
	ppa := ftl.NewPPA(1, 1, 0, 2, 0)

	tm.Advance(ppa, OpWrite, 0)
	assert.Equal(t, 40*us, tm.Advance(ppa, OpRead, 10*ms))
	assert.Equal(t, 10*ms+40*us, tm.DieAvailable(ppa))
}

func TestTiming_ChannelTransfer(t *testing.T) {
	cfg := smallConfig()
	cfg.ModelChannelTransfer = true
	tm := NewTiming(&cfg)

	// read: die first, then the channel
	assert.Equal(t, 50*us, tm.Advance(ftl.NewPPA(0, 0, 0, 0, 0), OpRead, 0))
	// a read on the other die of the same channel overlaps the array read
	// but queues behind the first transfer
	assert.Equal(t, 60*us, tm.Advance(ftl.NewPPA(0, 1, 0, 0, 0), OpRead, 0))

	// write: channel first, then the die
	assert.Equal(t, 210*us, tm.Advance(ftl.NewPPA(1, 0, 0, 0, 0), OpWrite, 0))
}

func TestTiming_GCEndTime(t *testing.T) {
	cfg := smallConfig()
	tm := NewTiming(&cfg)

	tm.Advance(ftl.NewPPA(0, 0, 0, 0, 0), OpWrite, 0)
	assert.Equal(t, int64(0), tm.GCEndTime())

	tm.AdvanceGC(ftl.NewPPA(1, 1, 0, 0, 0), OpErase, 5*ms)
	assert.Equal(t, 7*ms, tm.GCEndTime())
}
