package draft

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func validDraft() *Draft {
    return &Draft{
        ID:         "d1",
        OwnerKey:   "user:42",
        ShowtimeID: 7,
        SeatIDs:    []uint64{1, 2},
        UnitPrices: []int64{80000, 120000},
        TotalMinor: 200000,
        Currency:   "VND",
        CreatedAt:  time.Now().UTC(),
    }
}

func TestValidate(t *testing.T) {
    t.Run("well-formed draft passes", func(t *testing.T) {
        assert.NoError(t, validDraft().Validate())
    })

    t.Run("empty seat list rejected", func(t *testing.T) {
        d := validDraft()
        d.SeatIDs = nil
        d.UnitPrices = nil
        d.TotalMinor = 0
        assert.ErrorIs(t, d.Validate(), ErrInvalid)
    })

    t.Run("price list length mismatch rejected", func(t *testing.T) {
        d := validDraft()
        d.UnitPrices = d.UnitPrices[:1]
        assert.ErrorIs(t, d.Validate(), ErrInvalid)
    })

    t.Run("total must equal sum of unit prices", func(t *testing.T) {
        d := validDraft()
        d.TotalMinor = 199999
        assert.ErrorIs(t, d.Validate(), ErrInvalid)
    })

    t.Run("missing owner rejected", func(t *testing.T) {
        d := validDraft()
        d.OwnerKey = ""
        assert.ErrorIs(t, d.Validate(), ErrInvalid)
    })
}
