package nand

import (
	"testing"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/stretchr/testify/assert"
)

func TestArray_PageLifecycle(t *testing.T) {
	cfg := smallConfig()
	a := NewArray(cfg.Params())
	ppa := ftl.NewPPA(1, 0, 0, 2, 3)

	assert.Equal(t, PageFree, a.State(ppa))

	a.MarkValid(ppa)
	a.MarkValid(ppa.WithPage(0))
	assert.Equal(t, PageValid, a.State(ppa))
	assert.Equal(t, Block{VPC: 2}, a.Block(ppa))

	a.MarkInvalid(ppa)
	assert.Equal(t, PageInvalid, a.State(ppa))
	assert.Equal(t, Block{VPC: 1, IPC: 1}, a.Block(ppa))
	assert.Equal(t, 1, a.ValidPages())

	a.Erase(ppa)
	assert.Equal(t, PageFree, a.State(ppa))
	assert.Equal(t, PageFree, a.State(ppa.WithPage(0)))
	assert.Equal(t, Block{EraseCount: 1}, a.Block(ppa))

	// neighbours are untouched
	assert.Equal(t, Block{}, a.Block(ftl.NewPPA(1, 0, 0, 1, 0)))
	params := cfg.Params()
	assert.Equal(t, uint32(1), a.EraseCounts()[params.BlockIndex(ppa)])
}

func TestArray_IllegalTransitionsPanic(t *testing.T) {
	cfg := smallConfig()
	a := NewArray(cfg.Params())
	ppa := ftl.NewPPA(0, 1, 0, 0, 0)

	assert.Panics(t, func() { a.MarkInvalid(ppa) }, "free page cannot be invalidated")

	a.MarkValid(ppa)
	assert.Panics(t, func() { a.MarkValid(ppa) }, "valid page cannot be programmed again")

	a.MarkInvalid(ppa)
	assert.Panics(t, func() { a.MarkValid(ppa) }, "invalid page must be erased first")
}
