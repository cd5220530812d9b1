package booking

import (
    "context"
    "errors"
    "io"
    "strconv"
    "sync"
    "testing"
    "time"

    "github.com/sirupsen/logrus"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/draft"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/pricing"
    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/repository"
)

// Function-field fakes: each test overrides only the paths it
// exercises.

type fakeCatalog struct {
    showtimeFn func(ctx context.Context, id uint64) (*model.ShowtimeDetail, error)
    seatsFn    func(ctx context.Context, seatIDs []uint64) ([]model.Seat, error)
}

func (f *fakeCatalog) ShowtimeByID(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
    return f.showtimeFn(ctx, id)
}

func (f *fakeCatalog) SeatsByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error) {
    return f.seatsFn(ctx, seatIDs)
}

// fakeBookings is an in-memory stand-in for the MySQL repository.  Its
// CreateWithItems enforces the same one-winner-per-seat rule the
// unique key enforces in the real store, so the race tests exercise
// the orchestrator against honest conflict semantics.
type fakeBookings struct {
    mu      sync.Mutex
    rows    map[string]*repository.BookingWithItems
    taken   map[string]string // "showtime/seat" -> booking ID holding it
    seq     int
    confirm int

    extendOK  bool
    extendErr error
}

func newFakeBookings() *fakeBookings {
    return &fakeBookings{
        rows:     make(map[string]*repository.BookingWithItems),
        taken:    make(map[string]string),
        extendOK: true,
    }
}

func seatKey(showtimeID, seatID uint64) string {
    return strconv.FormatUint(showtimeID, 10) + "/" + strconv.FormatUint(seatID, 10)
}

func (f *fakeBookings) NewBookingCode(context.Context) (string, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.seq++
    return "BK-TEST" + string(rune('A'+f.seq%26)), nil
}

func (f *fakeBookings) CreateWithItems(_ context.Context, b *model.Booking, items []model.BookingItem) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, it := range items {
        if holder, ok := f.taken[seatKey(it.ShowtimeID, it.SeatID)]; ok {
            if other := f.rows[holder]; other != nil && other.Booking.Status.Blocking() {
                return repository.ErrSeatTaken
            }
        }
    }
    for _, it := range items {
        f.taken[seatKey(it.ShowtimeID, it.SeatID)] = b.ID
    }
    cp := *b
    f.rows[b.ID] = &repository.BookingWithItems{Booking: cp, Items: append([]model.BookingItem(nil), items...)}
    return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id string) (*repository.BookingWithItems, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    bw, ok := f.rows[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *bw
    cp.Items = append([]model.BookingItem(nil), bw.Items...)
    cp.Tickets = append([]model.Ticket(nil), bw.Tickets...)
    return &cp, nil
}

func (f *fakeBookings) Confirm(_ context.Context, id string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    bw, ok := f.rows[id]
    if !ok {
        return repository.ErrNotFound
    }
    if bw.Booking.Status != model.BookingPending {
        return repository.ErrConflict
    }
    bw.Booking.Status = model.BookingConfirmed
    for i := range bw.Items {
        bw.Items[i].Status = model.BookingConfirmed
        bw.Tickets = append(bw.Tickets, model.Ticket{
            BookingItemID: bw.Items[i].ID,
            Code:          "TK-" + bw.Items[i].SeatLabel,
        })
    }
    f.confirm++
    return nil
}

func (f *fakeBookings) Cancel(_ context.Context, id string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    bw, ok := f.rows[id]
    if !ok {
        return repository.ErrNotFound
    }
    if bw.Booking.Status != model.BookingPending {
        return repository.ErrConflict
    }
    bw.Booking.Status = model.BookingCanceled
    return nil
}

func (f *fakeBookings) Expire(_ context.Context, id string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    bw, ok := f.rows[id]
    if !ok {
        return repository.ErrNotFound
    }
    if bw.Booking.Status != model.BookingPending {
        return repository.ErrConflict
    }
    bw.Booking.Status = model.BookingExpired
    for i := range bw.Items {
        bw.Items[i].Status = model.BookingExpired
    }
    return nil
}

func (f *fakeBookings) ExtendHold(_ context.Context, id string, until time.Time) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.extendErr != nil {
        return false, f.extendErr
    }
    if bw, ok := f.rows[id]; ok && f.extendOK && bw.Booking.Status == model.BookingPending {
        bw.Booking.HoldExpiresAt = until
        return true, nil
    }
    return false, nil
}

type fakeDrafts struct {
    mu      sync.Mutex
    byID    map[string]*draft.Draft
    failPut bool
}

func newFakeDrafts() *fakeDrafts {
    return &fakeDrafts{byID: make(map[string]*draft.Draft)}
}

func (f *fakeDrafts) Create(_ context.Context, d *draft.Draft, _ time.Duration) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failPut {
        return errors.New("redis down")
    }
    f.byID[d.ID] = d
    return nil
}

func (f *fakeDrafts) Get(_ context.Context, id string) (*draft.Draft, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    d, ok := f.byID[id]
    if !ok {
        return nil, draft.ErrNotFound
    }
    return d, nil
}

func (f *fakeDrafts) Delete(_ context.Context, id string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    delete(f.byID, id)
    return nil
}

func (f *fakeDrafts) Extend(_ context.Context, id string, _ time.Duration) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    _, ok := f.byID[id]
    return ok, nil
}

type fakeLocks struct {
    mu       sync.Mutex
    extended [][]uint64
    unlocked [][]uint64
    fail     error
}

func (f *fakeLocks) ExtendSeats(_ context.Context, _ uint64, _ string, seatIDs []uint64, _ time.Duration) ([]uint64, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.fail != nil {
        return nil, f.fail
    }
    f.extended = append(f.extended, seatIDs)
    return seatIDs, nil
}

func (f *fakeLocks) UnlockSeats(_ context.Context, _ uint64, _ string, seatIDs []uint64) ([]uint64, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.fail != nil {
        return nil, f.fail
    }
    f.unlocked = append(f.unlocked, seatIDs)
    return seatIDs, nil
}

type fakeQuoter struct{}

func (fakeQuoter) QuoteSeats(_ context.Context, st *model.ShowtimeDetail, seats []model.Seat) ([]pricing.Quote, error) {
    out := make([]pricing.Quote, 0, len(seats))
    for _, s := range seats {
        out = append(out, pricing.Quote{SeatID: s.ID, SeatType: s.Type, PriceMinor: st.BasePriceMinor})
    }
    return out, nil
}

type fakePaymentSink struct {
    mu      sync.Mutex
    created []*model.Payment
}

func (f *fakePaymentSink) Create(_ context.Context, p *model.Payment) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.created = append(f.created, p)
    return nil
}

type recordingPublisher struct {
    mu    sync.Mutex
    calls int
    err   error
}

func (r *recordingPublisher) PublishBookingConfirmed(context.Context, *repository.BookingWithItems, *model.ShowtimeDetail) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.calls++
    return r.err
}

type fixture struct {
    orch      *Orchestrator
    catalog   *fakeCatalog
    bookings  *fakeBookings
    drafts    *fakeDrafts
    locks     *fakeLocks
    payments  *fakePaymentSink
    publisher *recordingPublisher
}

func futureShowtime() *model.ShowtimeDetail {
    return &model.ShowtimeDetail{
        Showtime: model.Showtime{
            ID:             7,
            MovieID:        1,
            RoomID:         3,
            StartsAt:       time.Now().UTC().Add(2 * time.Hour),
            BasePriceMinor: 90000,
            Currency:       "VND",
        },
        RoomName:   "Room 3",
        CinemaID:   1,
        CinemaName: "Downtown",
        MovieTitle: "The Long Goodbye",
    }
}

func roomSeats(ids ...uint64) []model.Seat {
    out := make([]model.Seat, 0, len(ids))
    for _, id := range ids {
        out = append(out, model.Seat{ID: id, RoomID: 3, RowLabel: "A", SeatNumber: uint32(id), Type: model.SeatTypeStandard, IsActive: true})
    }
    return out
}

func newOrchFixture(t *testing.T) *fixture {
    t.Helper()
    log := logrus.New()
    log.SetOutput(io.Discard)

    catalog := &fakeCatalog{
        showtimeFn: func(_ context.Context, id uint64) (*model.ShowtimeDetail, error) {
            if id != 7 {
                return nil, repository.ErrNotFound
            }
            return futureShowtime(), nil
        },
        seatsFn: func(_ context.Context, seatIDs []uint64) ([]model.Seat, error) {
            return roomSeats(seatIDs...), nil
        },
    }
    fx := &fixture{
        catalog:   catalog,
        bookings:  newFakeBookings(),
        drafts:    newFakeDrafts(),
        locks:     &fakeLocks{},
        payments:  &fakePaymentSink{},
        publisher: &recordingPublisher{},
    }
    fx.orch = NewOrchestrator(fx.catalog, fx.bookings, fx.drafts, fx.locks, fakeQuoter{}, fx.payments, fx.publisher, Options{
        HoldTTL:    3 * time.Minute,
        PaymentTTL: 10 * time.Minute,
    }, log)
    return fx
}

func TestCreateBuildsDraftAndPendingBooking(t *testing.T) {
    fx := newOrchFixture(t)

    res, err := fx.orch.Create(context.Background(), CreateInput{
        OwnerKey:   "user:42",
        ShowtimeID: 7,
        SeatIDs:    []uint64{11, 12, 11}, // duplicate collapses
        Contact:    "a@example.com",
    })
    require.NoError(t, err)

    assert.Equal(t, model.BookingPending, res.Booking.Booking.Status)
    assert.Len(t, res.Booking.Items, 2)
    assert.Equal(t, int64(180000), res.Booking.Booking.TotalMinor)
    assert.Equal(t, res.Booking.Booking.ID, res.Draft.ID, "draft and booking share one ID")
    assert.Equal(t, []uint64{11, 12}, res.Draft.SeatIDs)
    assert.Equal(t, int64(180000), res.Draft.TotalMinor)

    stored, err := fx.drafts.Get(context.Background(), res.Draft.ID)
    require.NoError(t, err)
    assert.Equal(t, "user:42", stored.OwnerKey)
}

func TestCreateValidation(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    t.Run("no seats", func(t *testing.T) {
        _, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "u", ShowtimeID: 7})
        assert.ErrorIs(t, err, ErrNoSeats)
    })

    t.Run("unknown showtime", func(t *testing.T) {
        _, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "u", ShowtimeID: 99, SeatIDs: []uint64{1}})
        assert.ErrorIs(t, err, ErrShowtimeNotFound)
    })

    t.Run("started showtime", func(t *testing.T) {
        fx.catalog.showtimeFn = func(context.Context, uint64) (*model.ShowtimeDetail, error) {
            st := futureShowtime()
            st.StartsAt = time.Now().UTC().Add(-time.Minute)
            return st, nil
        }
        _, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "u", ShowtimeID: 7, SeatIDs: []uint64{1}})
        assert.ErrorIs(t, err, ErrShowtimeStarted)
    })
}

func TestCreateRejectsBadSeats(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    t.Run("unknown seat", func(t *testing.T) {
        fx.catalog.seatsFn = func(context.Context, []uint64) ([]model.Seat, error) {
            return nil, nil
        }
        _, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "u", ShowtimeID: 7, SeatIDs: []uint64{1}})
        assert.ErrorIs(t, err, ErrUnknownSeat)
    })

    t.Run("wrong room", func(t *testing.T) {
        fx.catalog.seatsFn = func(_ context.Context, ids []uint64) ([]model.Seat, error) {
            seats := roomSeats(ids...)
            seats[0].RoomID = 99
            return seats, nil
        }
        _, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "u", ShowtimeID: 7, SeatIDs: []uint64{1}})
        assert.ErrorIs(t, err, ErrSeatWrongRoom)
    })

    t.Run("inactive seat", func(t *testing.T) {
        fx.catalog.seatsFn = func(_ context.Context, ids []uint64) ([]model.Seat, error) {
            seats := roomSeats(ids...)
            seats[0].IsActive = false
            return seats, nil
        }
        _, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "u", ShowtimeID: 7, SeatIDs: []uint64{1}})
        assert.ErrorIs(t, err, ErrSeatInactive)
    })
}

func TestCreateLoserLeavesNoState(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    first, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11}})
    require.NoError(t, err)

    _, err = fx.orch.Create(ctx, CreateInput{OwnerKey: "user:2", ShowtimeID: 7, SeatIDs: []uint64{11}})
    assert.ErrorIs(t, err, ErrSeatConflict)

    // The loser must not have written a booking or a draft; the
    // winner's state is untouched.
    fx.bookings.mu.Lock()
    assert.Len(t, fx.bookings.rows, 1)
    fx.bookings.mu.Unlock()
    fx.drafts.mu.Lock()
    assert.Len(t, fx.drafts.byID, 1)
    fx.drafts.mu.Unlock()

    winner, err := fx.bookings.GetByID(ctx, first.Booking.Booking.ID)
    require.NoError(t, err)
    assert.Equal(t, model.BookingPending, winner.Booking.Status)
}

func TestCreateRollsBackWhenDraftStoreFails(t *testing.T) {
    fx := newOrchFixture(t)
    fx.drafts.failPut = true

    _, err := fx.orch.Create(context.Background(), CreateInput{OwnerKey: "u", ShowtimeID: 7, SeatIDs: []uint64{11}})
    require.Error(t, err)

    // The durable row was canceled so the seat frees up again.
    fx.bookings.mu.Lock()
    defer fx.bookings.mu.Unlock()
    for _, bw := range fx.bookings.rows {
        assert.Equal(t, model.BookingCanceled, bw.Booking.Status)
    }
}

func TestStartPaymentExtendsEverything(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    res, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11, 12}})
    require.NoError(t, err)

    p, err := fx.orch.StartPayment(ctx, res.Booking.Booking.ID, "user:1")
    require.NoError(t, err)

    assert.Equal(t, res.Booking.Booking.ID, p.BookingID)
    assert.Equal(t, int64(180000), p.AmountMinor)
    assert.Equal(t, model.PaymentInitiated, p.Status)
    require.Len(t, fx.locks.extended, 1)
    assert.ElementsMatch(t, []uint64{11, 12}, fx.locks.extended[0])

    after, err := fx.bookings.GetByID(ctx, res.Booking.Booking.ID)
    require.NoError(t, err)
    assert.Greater(t, after.Booking.HoldExpiresAt.Unix(), res.Booking.Booking.HoldExpiresAt.Unix())
}

func TestStartPaymentBestEffortExtension(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    res, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11}})
    require.NoError(t, err)

    // Lease extension failures never fail the payment start.
    fx.locks.fail = errors.New("redis down")
    fx.bookings.extendErr = errors.New("db down")

    p, err := fx.orch.StartPayment(ctx, res.Booking.Booking.ID, "user:1")
    require.NoError(t, err)
    assert.NotEmpty(t, p.ID)
}

func TestStartPaymentGuards(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    res, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11}})
    require.NoError(t, err)
    id := res.Booking.Booking.ID

    t.Run("unknown booking", func(t *testing.T) {
        _, err := fx.orch.StartPayment(ctx, "nope", "user:1")
        assert.ErrorIs(t, err, ErrBookingNotFound)
    })

    t.Run("wrong owner", func(t *testing.T) {
        _, err := fx.orch.StartPayment(ctx, id, "user:2")
        assert.ErrorIs(t, err, ErrNotOwner)
    })

    t.Run("not pending", func(t *testing.T) {
        require.NoError(t, fx.bookings.Cancel(ctx, id))
        _, err := fx.orch.StartPayment(ctx, id, "user:1")
        assert.ErrorIs(t, err, ErrNotPending)
    })
}

func TestConfirmIssuesTicketsOnce(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    res, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11, 12}})
    require.NoError(t, err)
    id := res.Booking.Booking.ID

    first, err := fx.orch.Confirm(ctx, id)
    require.NoError(t, err)
    assert.Equal(t, model.BookingConfirmed, first.Booking.Status)
    assert.Len(t, first.Tickets, 2)

    // Second confirm is a no-op success with the same tickets.
    second, err := fx.orch.Confirm(ctx, id)
    require.NoError(t, err)
    assert.Equal(t, first.Tickets, second.Tickets)
    assert.Equal(t, 1, fx.bookings.confirm, "repository confirm ran exactly once")
    assert.Equal(t, 1, fx.publisher.calls, "confirmed event published exactly once")

    // Confirm released the reservation: seats unlocked, draft gone.
    require.Len(t, fx.locks.unlocked, 1)
    assert.ElementsMatch(t, []uint64{11, 12}, fx.locks.unlocked[0])
    _, err = fx.drafts.Get(ctx, id)
    assert.ErrorIs(t, err, draft.ErrNotFound)
}

func TestConfirmFailsClosedAfterHoldExpiry(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    res, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11}})
    require.NoError(t, err)
    id := res.Booking.Booking.ID

    fx.bookings.mu.Lock()
    fx.bookings.rows[id].Booking.HoldExpiresAt = time.Now().UTC().Add(-time.Second)
    fx.bookings.mu.Unlock()

    _, err = fx.orch.Confirm(ctx, id)
    assert.ErrorIs(t, err, ErrExpired)

    // The overdue row turns terminal right away, before any sweep
    // runs, so a follow-up refund marker finds an Expired booking.
    after, err := fx.bookings.GetByID(ctx, id)
    require.NoError(t, err)
    assert.Equal(t, model.BookingExpired, after.Booking.Status)
    for _, it := range after.Items {
        assert.Equal(t, model.BookingExpired, it.Status)
    }
    assert.Empty(t, after.Tickets)
    require.Len(t, fx.locks.unlocked, 1)
    _, err = fx.drafts.Get(ctx, id)
    assert.ErrorIs(t, err, draft.ErrNotFound)

    t.Run("repeat confirm stays rejected", func(t *testing.T) {
        _, err := fx.orch.Confirm(ctx, id)
        assert.ErrorIs(t, err, ErrNotPending)
        assert.Zero(t, fx.bookings.confirm)
    })
}

func TestConfirmRejectsNonPending(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    res, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11}})
    require.NoError(t, err)
    id := res.Booking.Booking.ID
    require.NoError(t, fx.orch.Cancel(ctx, id, "user:1"))

    _, err = fx.orch.Confirm(ctx, id)
    assert.ErrorIs(t, err, ErrNotPending)
}

func TestConfirmSurvivesPublisherFailure(t *testing.T) {
    fx := newOrchFixture(t)
    fx.publisher.err = errors.New("broker down")
    ctx := context.Background()

    res, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11}})
    require.NoError(t, err)

    bw, err := fx.orch.Confirm(ctx, res.Booking.Booking.ID)
    require.NoError(t, err)
    assert.Equal(t, model.BookingConfirmed, bw.Booking.Status)
}

func TestCancelReleasesSeats(t *testing.T) {
    fx := newOrchFixture(t)
    ctx := context.Background()

    res, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:1", ShowtimeID: 7, SeatIDs: []uint64{11}})
    require.NoError(t, err)
    id := res.Booking.Booking.ID

    t.Run("wrong owner", func(t *testing.T) {
        assert.ErrorIs(t, fx.orch.Cancel(ctx, id, "user:2"), ErrNotOwner)
    })

    require.NoError(t, fx.orch.Cancel(ctx, id, "user:1"))

    after, err := fx.bookings.GetByID(ctx, id)
    require.NoError(t, err)
    assert.Equal(t, model.BookingCanceled, after.Booking.Status)
    require.Len(t, fx.locks.unlocked, 1)
    _, err = fx.drafts.Get(ctx, id)
    assert.ErrorIs(t, err, draft.ErrNotFound)

    t.Run("cancel twice", func(t *testing.T) {
        assert.ErrorIs(t, fx.orch.Cancel(ctx, id, "user:1"), ErrNotPending)
    })

    t.Run("seat is sellable again", func(t *testing.T) {
        _, err := fx.orch.Create(ctx, CreateInput{OwnerKey: "user:2", ShowtimeID: 7, SeatIDs: []uint64{11}})
        assert.NoError(t, err)
    })
}

func TestDedup(t *testing.T) {
    assert.Equal(t, []uint64{3, 1, 2}, dedup([]uint64{3, 1, 3, 0, 2, 1}))
}
