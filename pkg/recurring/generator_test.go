package recurring

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/dvoloshyn/finet/pkg/currency"
	"github.com/dvoloshyn/finet/pkg/dates"
	"github.com/dvoloshyn/finet/pkg/db"
	"github.com/dvoloshyn/finet/pkg/ledger"
)

type testEnv struct {
	defs      *Store
	generator *Generator
	ledger    *ledger.Store
	account   int64
	income    int64
	expense   int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "finet.db"))
	if err != nil {
		t.Fatalf("db.Open failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	settings := ledger.NewSettings(conn)
	converter := currency.NewConverter(settings)
	settings.Bind(converter)
	ledgerStore := ledger.NewStore(conn, converter)

	if err := settings.EnsureDefaults("EUR", map[string]float64{"EUR": 1.0, "USD": 1.08}); err != nil {
		t.Fatalf("EnsureDefaults failed: %v", err)
	}

	account, err := ledgerStore.AddAccount("Checking", "bank", "")
	if err != nil {
		t.Fatalf("AddAccount failed: %v", err)
	}
	income, err := ledgerStore.AddCategory("Salary", "Money", ledger.CategoryIncome)
	if err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}
	expense, err := ledgerStore.AddCategory("Rent", "Home", ledger.CategoryExpense)
	if err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}

	defs := NewStore(conn, ledgerStore)
	return &testEnv{
		defs:      defs,
		generator: NewGenerator(defs, ledgerStore),
		ledger:    ledgerStore,
		account:   account,
		income:    income,
		expense:   expense,
	}
}

func (e *testEnv) mustGet(t *testing.T, id int64) *Definition {
	t.Helper()
	def, err := e.defs.Get(id)
	if err != nil {
		t.Fatalf("Get(%d) failed: %v", id, err)
	}
	return def
}

func (e *testEnv) balance(t *testing.T, curr string) float64 {
	t.Helper()
	b, err := e.ledger.Balance(e.account, curr)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	return b
}

func TestGenerateDueMonthlyCatchUp(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     850,
		Currency:   "EUR",
		Frequency:  FrequencyMonthly,
		StartDate:  "2024-01-31",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	posted, err := env.generator.GenerateDue(context.Background(), dates.MustParse("2024-04-30"))
	if err != nil {
		t.Fatalf("GenerateDue failed: %v", err)
	}
	if posted != 4 {
		t.Errorf("posted = %d, want 4", posted)
	}

	// Short months clamp, then the day recovers to the start date's day.
	wantDates := map[string]bool{
		"2024-01-31": false,
		"2024-02-29": false,
		"2024-03-31": false,
		"2024-04-30": false,
	}
	txs, err := env.ledger.RecentTransactions(100)
	if err != nil {
		t.Fatalf("RecentTransactions failed: %v", err)
	}
	for _, tx := range txs {
		if _, ok := wantDates[tx.Date]; !ok {
			t.Errorf("unexpected posting date %s", tx.Date)
			continue
		}
		wantDates[tx.Date] = true
		if math.Abs(tx.Amount-(-850)) > 1e-9 {
			t.Errorf("posting %s amount = %v, want -850", tx.Date, tx.Amount)
		}
	}
	for date, seen := range wantDates {
		if !seen {
			t.Errorf("missing posting for %s", date)
		}
	}

	def := env.mustGet(t, id)
	if !def.Active {
		t.Error("definition deactivated during catch-up")
	}
	if def.NextOccurrence.String != "2024-05-31" {
		t.Errorf("cursor = %q, want 2024-05-31", def.NextOccurrence.String)
	}
	if !def.LastGeneratedAt.Valid {
		t.Error("last_generated_at not stamped")
	}

	if got := env.balance(t, "EUR"); math.Abs(got-(-3400)) > 1e-9 {
		t.Errorf("balance = %v, want -3400", got)
	}
}

func TestGenerateDueIdempotence(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.income,
		Amount:     1000,
		Currency:   "EUR",
		Frequency:  FrequencyMonthly,
		StartDate:  "2024-01-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	today := dates.MustParse("2024-03-15")
	first, err := env.generator.GenerateDue(context.Background(), today)
	if err != nil {
		t.Fatalf("first GenerateDue failed: %v", err)
	}
	if first != 3 {
		t.Errorf("first run posted = %d, want 3", first)
	}

	second, err := env.generator.GenerateDue(context.Background(), today)
	if err != nil {
		t.Fatalf("second GenerateDue failed: %v", err)
	}
	if second != 0 {
		t.Errorf("second run posted = %d, want 0", second)
	}

	if got := env.balance(t, "EUR"); math.Abs(got-3000) > 1e-9 {
		t.Errorf("balance after reruns = %v, want 3000", got)
	}
}

func TestGenerateDueOnceTerminality(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     49.99,
		Currency:   "EUR",
		Frequency:  FrequencyOnce,
		StartDate:  "2024-03-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	def := env.mustGet(t, id)
	if def.EndDate.String != "2024-03-01" {
		t.Errorf("once end_date = %q, want the start date", def.EndDate.String)
	}

	posted, err := env.generator.GenerateDue(context.Background(), dates.MustParse("2024-06-01"))
	if err != nil {
		t.Fatalf("GenerateDue failed: %v", err)
	}
	if posted != 1 {
		t.Errorf("posted = %d, want 1", posted)
	}

	def = env.mustGet(t, id)
	if def.Active {
		t.Error("one-shot definition still active after posting")
	}

	// Later runs produce nothing more, ever.
	posted, err = env.generator.GenerateDue(context.Background(), dates.MustParse("2025-06-01"))
	if err != nil {
		t.Fatalf("rerun GenerateDue failed: %v", err)
	}
	if posted != 0 {
		t.Errorf("rerun posted = %d, want 0", posted)
	}
}

func TestGenerateDueEndDateBoundary(t *testing.T) {
	env := newTestEnv(t)

	// End date lands exactly on the third weekly occurrence.
	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     15,
		Currency:   "EUR",
		Frequency:  FrequencyWeekly,
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-15",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	posted, err := env.generator.GenerateDue(context.Background(), dates.MustParse("2024-02-01"))
	if err != nil {
		t.Fatalf("GenerateDue failed: %v", err)
	}
	if posted != 3 {
		t.Errorf("posted = %d, want 3", posted)
	}

	def := env.mustGet(t, id)
	if def.Active {
		t.Error("definition still active past its end date")
	}
	if got := env.balance(t, "EUR"); math.Abs(got-(-45)) > 1e-9 {
		t.Errorf("balance = %v, want -45", got)
	}
}

func TestGenerateDueSeedsMissingCursor(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.income,
		Amount:     500,
		Currency:   "EUR",
		Frequency:  FrequencyDaily,
		StartDate:  "2024-03-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	// Simulate a definition created before cursor tracking existed.
	empty := ""
	if err := env.defs.UpdateDefinition(id, DefinitionUpdate{NextOccurrence: &empty}); err != nil {
		t.Fatalf("UpdateDefinition failed: %v", err)
	}
	if def := env.mustGet(t, id); def.NextOccurrence.Valid {
		t.Fatal("cursor not cleared")
	}

	posted, err := env.generator.GenerateDue(context.Background(), dates.MustParse("2024-03-03"))
	if err != nil {
		t.Fatalf("GenerateDue failed: %v", err)
	}
	if posted != 3 {
		t.Errorf("posted = %d, want 3 (03-01 through 03-03)", posted)
	}
	if def := env.mustGet(t, id); def.NextOccurrence.String != "2024-03-04" {
		t.Errorf("cursor = %q, want 2024-03-04", def.NextOccurrence.String)
	}
}

func TestGenerateDueFutureDefinitionUntouched(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     20,
		Currency:   "EUR",
		Frequency:  FrequencyMonthly,
		StartDate:  "2024-09-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	posted, err := env.generator.GenerateDue(context.Background(), dates.MustParse("2024-06-01"))
	if err != nil {
		t.Fatalf("GenerateDue failed: %v", err)
	}
	if posted != 0 {
		t.Errorf("posted = %d, want 0", posted)
	}

	def := env.mustGet(t, id)
	if !def.Active || def.NextOccurrence.String != "2024-09-01" {
		t.Errorf("future definition changed: active=%v cursor=%q", def.Active, def.NextOccurrence.String)
	}
	if got := env.balance(t, "EUR"); got != 0 {
		t.Errorf("balance = %v, want 0", got)
	}
}

func TestGenerateDueSkipsExistingPosting(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     850,
		Currency:   "EUR",
		Frequency:  FrequencyMonthly,
		StartDate:  "2024-01-31",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	// The first occurrence was already posted by an earlier, interrupted run
	// that never advanced the cursor.
	err = env.ledger.PostOccurrence(ledger.OccurrencePosting{
		Date:           "2024-01-31",
		Amount:         -850,
		CategoryID:     env.expense,
		AccountID:      env.account,
		Currency:       "EUR",
		RecurringID:    id,
		OccurrenceDate: "2024-01-31",
	})
	if err != nil {
		t.Fatalf("PostOccurrence failed: %v", err)
	}

	posted, err := env.generator.GenerateDue(context.Background(), dates.MustParse("2024-02-29"))
	if err != nil {
		t.Fatalf("GenerateDue failed: %v", err)
	}
	if posted != 1 {
		t.Errorf("posted = %d, want 1 (duplicate not counted)", posted)
	}
	if got := env.balance(t, "EUR"); math.Abs(got-(-1700)) > 1e-9 {
		t.Errorf("balance = %v, want -1700", got)
	}
	if def := env.mustGet(t, id); def.NextOccurrence.String != "2024-03-31" {
		t.Errorf("cursor = %q, want 2024-03-31", def.NextOccurrence.String)
	}
}

func TestGenerateDueCancelledContext(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     10,
		Currency:   "EUR",
		Frequency:  FrequencyDaily,
		StartDate:  "2024-01-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	posted, err := env.generator.GenerateDue(ctx, dates.MustParse("2024-01-05"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateDue(cancelled) error = %v, want context.Canceled", err)
	}
	if posted != 0 {
		t.Errorf("posted = %d, want 0", posted)
	}
}

func TestCreateDefinitionValidation(t *testing.T) {
	env := newTestEnv(t)

	base := NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     10,
		Currency:   "EUR",
		Frequency:  FrequencyMonthly,
		StartDate:  "2024-01-01",
	}

	tests := []struct {
		name   string
		mutate func(*NewDefinition)
	}{
		{"unsupported frequency", func(nd *NewDefinition) { nd.Frequency = "hourly" }},
		{"malformed start date", func(nd *NewDefinition) { nd.StartDate = "Jan 1, 2024" }},
		{"malformed end date", func(nd *NewDefinition) { nd.EndDate = "2024-13-40" }},
		{"negative raw amount", func(nd *NewDefinition) { nd.Amount = -10 }},
		{"empty currency", func(nd *NewDefinition) { nd.Currency = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nd := base
			tt.mutate(&nd)
			_, err := env.defs.CreateDefinition(nd)
			var verr *ledger.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("CreateDefinition() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateDefinitionSignsAndConverts(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     108,
		Currency:   "USD",
		Frequency:  FrequencyMonthly,
		StartDate:  "2024-01-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	def := env.mustGet(t, id)
	if math.Abs(def.Amount-(-108)) > 1e-9 {
		t.Errorf("Amount = %v, want -108", def.Amount)
	}
	if math.Abs(def.AmountConverted-(-100)) > 1e-9 {
		t.Errorf("AmountConverted = %v, want -100", def.AmountConverted)
	}
	if def.NextOccurrence.String != "2024-01-01" {
		t.Errorf("cursor = %q, want the start date", def.NextOccurrence.String)
	}
}

func TestUpdateDefinitionResigns(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     100,
		Currency:   "EUR",
		Frequency:  FrequencyMonthly,
		StartDate:  "2024-01-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	// Switching to an income category flips the stored sign.
	if err := env.defs.UpdateDefinition(id, DefinitionUpdate{CategoryID: &env.income}); err != nil {
		t.Fatalf("UpdateDefinition failed: %v", err)
	}
	def := env.mustGet(t, id)
	if math.Abs(def.Amount-100) > 1e-9 {
		t.Errorf("Amount after category switch = %v, want 100", def.Amount)
	}

	amount := 250.0
	if err := env.defs.UpdateDefinition(id, DefinitionUpdate{Amount: &amount}); err != nil {
		t.Fatalf("UpdateDefinition failed: %v", err)
	}
	def = env.mustGet(t, id)
	if math.Abs(def.Amount-250) > 1e-9 {
		t.Errorf("Amount after raise = %v, want 250", def.Amount)
	}
}

func TestReactivateReseedsCursor(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.defs.CreateDefinition(NewDefinition{
		AccountID:  env.account,
		CategoryID: env.expense,
		Amount:     30,
		Currency:   "EUR",
		Frequency:  FrequencyOnce,
		StartDate:  "2024-01-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	if _, err := env.generator.GenerateDue(context.Background(), dates.MustParse("2024-01-01")); err != nil {
		t.Fatalf("GenerateDue failed: %v", err)
	}
	if def := env.mustGet(t, id); def.Active {
		t.Fatal("definition still active")
	}

	if err := env.defs.Reactivate(id, "2024-06-01"); err != nil {
		t.Fatalf("Reactivate failed: %v", err)
	}
	def := env.mustGet(t, id)
	if !def.Active || def.NextOccurrence.String != "2024-06-01" {
		t.Errorf("after Reactivate: active=%v cursor=%q", def.Active, def.NextOccurrence.String)
	}
}

func TestListActiveOnly(t *testing.T) {
	env := newTestEnv(t)

	activeID, err := env.defs.CreateDefinition(NewDefinition{
		AccountID: env.account, CategoryID: env.expense, Amount: 10, Currency: "EUR",
		Frequency: FrequencyMonthly, StartDate: "2024-01-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}
	inactiveID, err := env.defs.CreateDefinition(NewDefinition{
		AccountID: env.account, CategoryID: env.expense, Amount: 20, Currency: "EUR",
		Frequency: FrequencyMonthly, StartDate: "2024-01-01",
	})
	if err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}
	if err := env.defs.Deactivate(inactiveID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	active, err := env.defs.List(true)
	if err != nil {
		t.Fatalf("List(true) failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != activeID {
		t.Errorf("List(true) = %+v, want only definition %d", active, activeID)
	}

	all, err := env.defs.List(false)
	if err != nil {
		t.Fatalf("List(false) failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(false) returned %d definitions, want 2", len(all))
	}
}
