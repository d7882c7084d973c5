package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dvoloshyn/finet/pkg/dates"
	"github.com/dvoloshyn/finet/pkg/ledger"
)

// defState is the catch-up state of one definition.
//
// Transitions only move forward in time; there is no rewind. Terminal is
// permanent until the definition is explicitly reactivated.
type defState int

const (
	statePending   defState = iota // cursor set, may or may not be due
	statePosting                   // posting the due occurrence
	stateAdvancing                 // computing and persisting the successor
	stateTerminal                  // caught up, or no further occurrences exist
)

// Generator catches up recurring definitions: for every active definition it
// posts all occurrences due through a given date and advances the cursor.
type Generator struct {
	definitions *Store
	ledger      *ledger.Store
}

// NewGenerator creates a Generator over the given stores.
func NewGenerator(definitions *Store, ledgerStore *ledger.Store) *Generator {
	return &Generator{definitions: definitions, ledger: ledgerStore}
}

// GenerateDue posts every occurrence with date <= today across all active
// definitions, in ascending cursor order, and returns the number of postings
// created.
//
// The operation is idempotent: each posting is guarded by the
// (recurring_id, occurrence_date) uniqueness constraint, and a duplicate is
// treated as already generated rather than an error. One definition's failure
// does not abort the others; the joined errors are returned alongside the
// best-effort count. The context is honored between definitions — each
// posting is already atomic, so resuming later is safe.
func (g *Generator) GenerateDue(ctx context.Context, today time.Time) (int, error) {
	defs, err := g.definitions.List(true)
	if err != nil {
		return 0, err
	}

	generated := 0
	var errs []error
	for i := range defs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		n, err := g.catchUp(&defs[i], today)
		generated += n
		if err != nil {
			slog.Error("recurring generation failed for definition",
				"recurring_id", defs[i].ID, "error", err)
			errs = append(errs, fmt.Errorf("definition %d: %w", defs[i].ID, err))
		}
	}

	return generated, errors.Join(errs...)
}

// catchUp drives one definition through the Pending/Posting/Advancing state
// machine until it is caught up or terminal. Returns the number of postings
// created for this definition.
func (g *Generator) catchUp(def *Definition, today time.Time) (int, error) {
	if !def.NextOccurrence.Valid || def.NextOccurrence.String == "" {
		// Definition predates cursor tracking; seed from the start date.
		if def.StartDate == "" {
			return 0, ledger.Validationf("next_occurrence", "no cursor and no start date")
		}
		if err := g.definitions.UpdateDefinition(def.ID, DefinitionUpdate{
			NextOccurrence: &def.StartDate,
		}); err != nil {
			return 0, err
		}
		def.NextOccurrence.String = def.StartDate
		def.NextOccurrence.Valid = true
	}

	occ, err := dates.Parse(def.NextOccurrence.String)
	if err != nil {
		return 0, ledger.Validationf("next_occurrence", "%v", err)
	}

	posted := 0
	state := statePending
	for state != stateTerminal {
		switch state {
		case statePending:
			if !def.Active || occ.After(today) {
				state = stateTerminal
				continue
			}
			state = statePosting

		case statePosting:
			err := g.ledger.PostOccurrence(ledger.OccurrencePosting{
				Date:           dates.String(occ),
				Amount:         def.Amount,
				CategoryID:     def.CategoryID,
				AccountID:      def.AccountID,
				Currency:       def.Currency,
				Notes:          def.Notes,
				RecurringID:    def.ID,
				OccurrenceDate: dates.String(occ),
			})
			switch {
			case errors.Is(err, ledger.ErrDuplicatePosting):
				// Already generated by a previous run; advance without counting.
			case err != nil:
				return posted, err
			default:
				posted++
			}
			state = stateAdvancing

		case stateAdvancing:
			now := nowStamp()
			next, ok := NextOccurrence(*def, occ)
			if !ok {
				// No further occurrences: end date reached, a one-shot, or a
				// clamping failure. The definition self-deactivates.
				if err := g.definitions.UpdateDefinition(def.ID, DefinitionUpdate{
					Active:          boolPtr(false),
					LastGeneratedAt: &now,
				}); err != nil {
					return posted, err
				}
				def.Active = false
				state = stateTerminal
				continue
			}

			nextStr := dates.String(next)
			if err := g.definitions.UpdateDefinition(def.ID, DefinitionUpdate{
				NextOccurrence:  &nextStr,
				LastGeneratedAt: &now,
			}); err != nil {
				return posted, err
			}
			def.NextOccurrence.String = nextStr
			def.NextOccurrence.Valid = true
			occ = next
			state = statePending
		}
	}

	return posted, nil
}

func boolPtr(b bool) *bool { return &b }

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
