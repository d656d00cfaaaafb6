package vouchers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/attachments"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	nextLine int64
	vouchers map[int64]Voucher
	barrier  *sync.WaitGroup
}

func newMemRepo() *memRepo {
	return &memRepo{vouchers: make(map[int64]Voucher)}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, memTx{r})
}

func (r *memRepo) Get(ctx context.Context, id int64) (Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[id]
	if !ok {
		return Voucher{}, fmt.Errorf("%w: voucher %d", shared.ErrNotFound, id)
	}
	return clone(v), nil
}

func (r *memRepo) List(ctx context.Context, filter ListFilter) ([]Voucher, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Voucher
	for id := int64(1); id <= r.nextID; id++ {
		v, ok := r.vouchers[id]
		if !ok || (filter.Kind != "" && v.Kind != filter.Kind) || (filter.Status != "" && v.Status != filter.Status) {
			continue
		}
		out = append(out, clone(v))
	}
	return out, len(out), nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.vouchers)
}

type memTx struct{ r *memRepo }

func (t memTx) Load(ctx context.Context, id int64) (Voucher, error) {
	v, err := t.r.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if b := t.r.barrier; b != nil {
		b.Done()
		b.Wait()
	}
	return v, nil
}

func (t memTx) Insert(ctx context.Context, v Voucher) (Voucher, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.nextID++
	v.ID = t.r.nextID
	v.Version = 1
	v.Lines = t.r.assignLines(v.ID, v.Lines)
	t.r.vouchers[v.ID] = clone(v)
	return v, nil
}

func (t memTx) Save(ctx context.Context, v Voucher, expectedVersion int64) (Voucher, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	stored, ok := t.r.vouchers[v.ID]
	if !ok || stored.Version != expectedVersion || stored.Status != StatusDraft {
		return Voucher{}, fmt.Errorf("%w: voucher %d", shared.ErrConflict, v.ID)
	}
	v.Version = expectedVersion + 1
	v.Lines = t.r.assignLines(v.ID, v.Lines)
	t.r.vouchers[v.ID] = clone(v)
	return v, nil
}

func (t memTx) Delete(ctx context.Context, id, expectedVersion int64) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	stored, ok := t.r.vouchers[id]
	if !ok || stored.Version != expectedVersion || stored.Status != StatusDraft {
		return fmt.Errorf("%w: voucher %d", shared.ErrConflict, id)
	}
	delete(t.r.vouchers, id)
	return nil
}

func (t memTx) InsertAttachments(ctx context.Context, voucherID int64, atts []attachments.Attachment) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	v := t.r.vouchers[voucherID]
	v.Attachments = append(v.Attachments, atts...)
	t.r.vouchers[voucherID] = v
	return nil
}

func (r *memRepo) assignLines(voucherID int64, lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		if l.ID == 0 {
			r.nextLine++
			l.ID = r.nextLine
		}
		l.VoucherID = voucherID
		out[i] = l
	}
	return out
}

func clone(v Voucher) Voucher {
	v.Lines = append([]Line(nil), v.Lines...)
	v.Attachments = append([]attachments.Attachment(nil), v.Attachments...)
	return v
}

type staticCatalog struct{ catalog *accounts.Catalog }

func (c staticCatalog) Catalog(ctx context.Context) (*accounts.Catalog, error) {
	return c.catalog, nil
}

type switchGate struct {
	mu     sync.Mutex
	period periods.Period
}

func (g *switchGate) Validate(ctx context.Context, date time.Time) (periods.Period, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.period.Covers(date) || !g.period.IsOpen() {
		return periods.Period{}, fmt.Errorf("%w: %s", shared.ErrNoOpenPeriod, date.Format(time.DateOnly))
	}
	return g.period, nil
}

func (g *switchGate) close() {
	g.mu.Lock()
	g.period.Status = periods.StatusClosed
	g.mu.Unlock()
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return c.err
}

type recordedEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordedEvents) VoucherEvent(kind, event string) {
	e.mu.Lock()
	e.events = append(e.events, kind+":"+event)
	e.mu.Unlock()
}

const (
	cashID      int64 = 11
	rentID      int64 = 21
	utilitiesID int64 = 22
	expensesID  int64 = 20
	opsCenterID int64 = 7
)

func ptr[T any](v T) *T { return &v }

func testCatalog(t *testing.T) *accounts.Catalog {
	t.Helper()
	cat, err := accounts.NewCatalog([]accounts.Account{
		{ID: 10, Code: "1000", NameEn: "Assets", NormalSide: accounts.SideDebit, IsActive: true},
		{ID: cashID, Code: "1010", NameEn: "Cash", ParentID: ptr(int64(10)), IsPostable: true, NormalSide: accounts.SideDebit, IsActive: true},
		{ID: expensesID, Code: "5000", NameEn: "Expenses", NormalSide: accounts.SideDebit, IsActive: true},
		{ID: rentID, Code: "5010", NameEn: "Rent", ParentID: ptr(expensesID), IsPostable: true, NormalSide: accounts.SideDebit, IsActive: true},
		{ID: utilitiesID, Code: "5020", NameEn: "Utilities", ParentID: ptr(expensesID), IsPostable: true, NormalSide: accounts.SideDebit, IsActive: true},
	}, []accounts.CostCenter{{ID: opsCenterID, Code: "OPS", Name: "Operations"}})
	require.NoError(t, err)
	return cat
}

var (
	jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb01 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc    *Service
	repo   *memRepo
	gate   *switchGate
	inv    *countingInvalidator
	events *recordedEvents
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := newMemRepo()
	gate := &switchGate{period: periods.Period{
		ID: 1, Name: "Jan 2024", Status: periods.StatusOpen,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}}
	svc := NewService(repo, staticCatalog{testCatalog(t)}, gate, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC) })
	inv := &countingInvalidator{}
	events := &recordedEvents{}
	svc.WithReportInvalidator(inv)
	svc.WithEvents(events)
	return fixture{svc: svc, repo: repo, gate: gate, inv: inv, events: events}
}

func amount(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func paymentInput(amounts ...string) CreateInput {
	lines := make([]LineInput, 0, len(amounts))
	for i, a := range amounts {
		account := rentID
		if i%2 == 1 {
			account = utilitiesID
		}
		lines = append(lines, LineInput{AccountID: account, Amount: amount(a), Description: fmt.Sprintf("line %d", i+1)})
	}
	return CreateInput{
		Header: Header{Kind: KindPayment, Date: jan15, Reference: "PV-001", AccountID: cashID, CreatedBy: "clerk"},
		Lines:  lines,
	}
}

func assertTotalMatchesLines(t *testing.T, v Voucher) {
	t.Helper()
	sum := decimal.Zero
	for _, l := range v.Lines {
		sum = sum.Add(l.Amount)
	}
	assert.True(t, sum.Equal(v.TotalAmount), "total %s != sum %s", v.TotalAmount, sum)
}

func TestCreateThenRemoveLineRecomputesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, paymentInput("100", "250"))
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, v.Status)
	assert.True(t, v.TotalAmount.Equal(amount("350")))
	require.Len(t, v.Lines, 2)
	assert.Equal(t, []int{1, 2}, []int{v.Lines[0].Position, v.Lines[1].Position})

	v, err = f.svc.RemoveLine(ctx, v.ID, v.Lines[1].ID)
	require.NoError(t, err)
	assert.True(t, v.TotalAmount.Equal(amount("100")))
	assertTotalMatchesLines(t, v)

	stored, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(amount("100")))
	assert.Equal(t, []string{"PAYMENT:created"}, f.events.events)
}

func TestCreateRejectsInvalidInputWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		mutate func(*CreateInput)
		target error
	}{
		"no lines":         {func(in *CreateInput) { in.Lines = nil }, shared.ErrNoLines},
		"zero amount":      {func(in *CreateInput) { in.Lines[0].Amount = decimal.Zero }, shared.ErrNonPositiveAmount},
		"negative amount":  {func(in *CreateInput) { in.Lines[0].Amount = amount("-5") }, shared.ErrNonPositiveAmount},
		"fractional cents": {func(in *CreateInput) { in.Lines[0].Amount = amount("1.005") }, shared.ErrValidation},
		"parent account":   {func(in *CreateInput) { in.Lines[0].AccountID = expensesID }, shared.ErrAccountNotPostable},
		"header account":   {func(in *CreateInput) { in.Header.AccountID = 0 }, shared.ErrValidation},
		"cost center":      {func(in *CreateInput) { in.Lines[0].CostCenterID = ptr(int64(99)) }, shared.ErrValidation},
		"kind":             {func(in *CreateInput) { in.Header.Kind = "JOURNAL" }, shared.ErrValidation},
		"creator":          {func(in *CreateInput) { in.Header.CreatedBy = "" }, shared.ErrValidation},
		"reference":        {func(in *CreateInput) { in.Header.Reference = strings.Repeat("x", 101) }, shared.ErrValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := paymentInput("100", "250")
			tc.mutate(&in)
			_, err := f.svc.Create(ctx, in)
			require.ErrorIs(t, err, tc.target)
			assert.Equal(t, shared.KindValidation, shared.KindOf(err))
		})
	}

	in := paymentInput("100", "250")
	in.Lines[0].AccountID = 999
	_, err := f.svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	assert.Zero(t, f.repo.count())
}

func TestCreateWithCostCenter(t *testing.T) {
	f := newFixture(t)
	in := paymentInput("40.50")
	in.Lines[0].CostCenterID = ptr(opsCenterID)

	v, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, v.Lines[0].CostCenterID)
	assert.Equal(t, opsCenterID, *v.Lines[0].CostCenterID)
}

func TestCreateOutsideOpenPeriodFailsPeriodClosed(t *testing.T) {
	f := newFixture(t)
	in := paymentInput("100")
	in.Header.Date = feb01

	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
	assert.Equal(t, shared.KindPeriodClosed, shared.KindOf(err))
	assert.Zero(t, f.repo.count())
}

func TestPostFailsWhenPeriodClosedAfterCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("100", "250"))
	require.NoError(t, err)

	f.gate.close()

	_, err = f.svc.Post(ctx, v.ID, "controller")
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
	stored, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, stored.Status)
	assert.Nil(t, stored.PostedAt)
	assert.Zero(t, f.inv.calls)
}

func TestUpdateHeaderRedatesStrandedDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("100"))
	require.NoError(t, err)

	f.gate.mu.Lock()
	f.gate.period = periods.Period{ID: 2, Name: "Feb 2024", Status: periods.StatusOpen, StartDate: feb01, EndDate: feb01.AddDate(0, 1, -1)}
	f.gate.mu.Unlock()

	_, err = f.svc.Post(ctx, v.ID, "controller")
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	_, err = f.svc.UpdateHeader(ctx, v.ID, HeaderInput{Date: jan15.AddDate(0, 0, 1), Reference: "PV-001", AccountID: cashID})
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	v, err = f.svc.UpdateHeader(ctx, v.ID, HeaderInput{Date: feb01.AddDate(0, 0, 2), Reference: "PV-001b", AccountID: cashID, Notes: "moved"})
	require.NoError(t, err)
	assert.Equal(t, "PV-001b", v.Reference)

	posted, err := f.svc.Post(ctx, v.ID, "controller")
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, posted.Status)
}

func TestPostFreezesVoucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("100", "250"))
	require.NoError(t, err)

	posted, err := f.svc.Post(ctx, v.ID, "controller")
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedAt)
	require.NotNil(t, posted.PostedBy)
	assert.Equal(t, "controller", *posted.PostedBy)
	assert.Equal(t, 1, f.inv.calls)
	assert.Contains(t, f.events.events, "PAYMENT:posted")

	before, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, v.ID, "controller")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.AddLine(ctx, v.ID, LineInput{AccountID: rentID, Amount: amount("1")})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.UpdateLine(ctx, v.ID, v.Lines[0].ID, LineInput{AccountID: rentID, Amount: amount("1")})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.RemoveLine(ctx, v.ID, v.Lines[0].ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.UpdateHeader(ctx, v.ID, HeaderInput{Date: jan15, AccountID: cashID})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.ErrorIs(t, f.svc.Delete(ctx, v.ID, "clerk"), shared.ErrInvalidState)

	after, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPostSurvivesFailedReportInvalidation(t *testing.T) {
	f := newFixture(t)
	f.inv.err = fmt.Errorf("redis unavailable")
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("100"))
	require.NoError(t, err)

	posted, err := f.svc.Post(ctx, v.ID, "controller")
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, posted.Status)
	assert.Equal(t, 1, f.inv.calls)
	assert.Equal(t, []string{"PAYMENT:created", "PAYMENT:posted", "PAYMENT:invalidate_failed"}, f.events.events)
}

func TestConcurrentPostExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("100", "250"))
	require.NoError(t, err)

	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	f.repo.barrier = barrier

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Post(ctx, v.ID, fmt.Sprintf("poster-%d", i))
		}(i)
	}
	wg.Wait()
	f.repo.barrier = nil

	var ok, conflicts int
	for _, err := range errs {
		switch shared.KindOf(err) {
		case shared.KindNone:
			ok++
		case shared.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Contains(t, f.events.events, "PAYMENT:conflict")

	stored, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, stored.Status)
}

func TestUpdateLineKeepsIdentityAndTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("100", "250"))
	require.NoError(t, err)
	lineID := v.Lines[0].ID

	v, err = f.svc.UpdateLine(ctx, v.ID, lineID, LineInput{AccountID: utilitiesID, Amount: amount("75.25"), Description: "power"})
	require.NoError(t, err)
	assert.Equal(t, lineID, v.Lines[0].ID)
	assert.Equal(t, utilitiesID, v.Lines[0].AccountID)
	assert.True(t, v.TotalAmount.Equal(amount("325.25")))

	_, err = f.svc.UpdateLine(ctx, v.ID, lineID, LineInput{AccountID: utilitiesID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, shared.ErrNonPositiveAmount)
	_, err = f.svc.UpdateLine(ctx, v.ID, 9999, LineInput{AccountID: utilitiesID, Amount: amount("1")})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	stored, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(amount("325.25")))
}

func TestRemovingLastLineIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("100"))
	require.NoError(t, err)

	_, err = f.svc.RemoveLine(ctx, v.ID, v.Lines[0].ID)
	require.ErrorIs(t, err, shared.ErrNoLines)
	stored, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)
}

func TestTotalMatchesLinesAcrossMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("10"))
	require.NoError(t, err)
	assertTotalMatchesLines(t, v)

	for i := 1; i <= 20; i++ {
		switch i % 3 {
		case 0:
			v, err = f.svc.RemoveLine(ctx, v.ID, v.Lines[0].ID)
		case 1:
			v, err = f.svc.AddLine(ctx, v.ID, LineInput{AccountID: rentID, Amount: decimal.NewFromInt(int64(i)).Add(amount("0.01"))})
		case 2:
			v, err = f.svc.UpdateLine(ctx, v.ID, v.Lines[len(v.Lines)-1].ID, LineInput{AccountID: utilitiesID, Amount: decimal.NewFromInt(int64(i * 3))})
		}
		require.NoError(t, err)
		assertTotalMatchesLines(t, v)
		stored, err := f.svc.Get(ctx, v.ID)
		require.NoError(t, err)
		assertTotalMatchesLines(t, stored)
	}
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, paymentInput("100"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, v.ID, "clerk"))
	_, err = f.svc.Get(ctx, v.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, v.ID, "clerk"), shared.ErrNotFound)
}

func TestPostingsAreBalanced(t *testing.T) {
	for _, kind := range []Kind{KindPayment, KindReceipt} {
		v, err := newDraft(testCatalog(t), Header{Kind: kind, Date: jan15, AccountID: cashID, CreatedBy: "clerk"},
			[]LineInput{{AccountID: rentID, Amount: amount("100")}, {AccountID: utilitiesID, Amount: amount("250")}}, jan15)
		require.NoError(t, err)

		debit, credit := decimal.Zero, decimal.Zero
		for _, p := range v.Postings() {
			debit = debit.Add(p.Debit)
			credit = credit.Add(p.Credit)
		}
		assert.True(t, debit.Equal(credit), "%s postings unbalanced", kind)
		assert.True(t, debit.Equal(amount("350")))
	}
}

func TestListValidatesFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, paymentInput("100"))
	require.NoError(t, err)

	_, _, err = f.svc.List(ctx, ListFilter{Kind: "JOURNAL"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	items, meta, err := f.svc.List(ctx, ListFilter{Kind: KindPayment})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, meta.Total)
	assert.Equal(t, 20, meta.PerPage)
}

func TestCreateHandsCompositionToVoucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := attachments.NewStore(attachments.NewRedisBlobs(client), attachments.Options{})
	f.svc.WithAttachments(store)

	sess := store.Begin(ctx, "clerk")
	defer sess.Close(ctx)
	att, err := sess.Attach(ctx, attachments.File{Name: "invoice.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF-1.7")})
	require.NoError(t, err)

	in := paymentInput("100")
	in.CompositionID = ptr(sess.ID())
	in.Header.CreatedBy = "someone-else"
	_, err = f.svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.True(t, mr.Exists(att.BlobRef))

	in.Header.CreatedBy = "clerk"
	v, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	require.Len(t, v.Attachments, 1)
	assert.Equal(t, att.ID, v.Attachments[0].ID)
	assert.False(t, mr.Exists(att.BlobRef))
	assert.True(t, mr.Exists(v.Attachments[0].BlobRef))

	stored, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, stored.Attachments, 1)

	require.NoError(t, f.svc.Delete(ctx, v.ID, "clerk"))
	assert.False(t, mr.Exists(v.Attachments[0].BlobRef))
}
