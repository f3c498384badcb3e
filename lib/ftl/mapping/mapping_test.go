package mapping

import (
	"testing"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	cfg := ftl.DefaultConfig()
	cfg.Channels, cfg.DiesPerChannel, cfg.BlocksPerPlane, cfg.PagesPerBlock = 2, 2, 4, 4
	tbl := New(cfg.Params())

	assert.Equal(t, uint64(64), tbl.Len())
	assert.Equal(t, ftl.UnmappedPPA, tbl.Get(5))

	ppa := ftl.NewPPA(1, 1, 0, 3, 2)
	tbl.Set(5, ppa)
	tbl.SetOwner(ppa, 5)
	assert.Equal(t, ppa, tbl.Get(5))
	assert.Equal(t, uint64(5), tbl.Owner(ppa))
	assert.Equal(t, 1, tbl.OwnedPages())

	tbl.ClearOwner(ppa)
	assert.Equal(t, InvalidLPN, tbl.Owner(ppa))
	assert.Equal(t, 0, tbl.OwnedPages())
}
