package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// Reconciler matches debit lines against credit lines (lettrage)
type Reconciler struct {
	repo      Repository
	chart     ChartReader
	publisher EventPublisher
	now       Clock
	logger    *logger.Logger
}

// NewReconciler creates a new reconciler; only WithPublisher and WithClock apply
func NewReconciler(repo Repository, chart ChartReader, log *logger.Logger, opts ...Option) *Reconciler {
	o := buildOptions(opts)
	return &Reconciler{
		repo:      repo,
		chart:     chart,
		publisher: o.publisher,
		now:       o.now,
		logger:    log.WithField("service", "reconciler"),
	}
}

// ReconcileResult describes what a Reconcile call created
type ReconcileResult struct {
	Partials []*PartialSettlement
	Full     *FullSettlement // nil while some connected line keeps a residual
}

// Reconcile pairs the open debit residuals of the given lines with their
// open credit residuals, earliest date first and ties broken by id. Each
// pair yields one partial settlement for the smaller residual. When every
// line connected to the matched lines through partial settlements ends at
// zero residual, the open partials of that group are gathered into a new
// full settlement.
func (r *Reconciler) Reconcile(ctx context.Context, scope Scope, lineIDs []uuid.UUID) (*ReconcileResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	ids := uniqueIDs(lineIDs)
	if len(ids) < 2 {
		return nil, ErrNothingToMatch
	}

	var result *ReconcileResult
	err := withinTx(ctx, r.repo, func(ctx context.Context) error {
		lines, err := r.lockLines(ctx, scope.CompanyID, ids)
		if err != nil {
			return err
		}
		if err := r.checkLines(ctx, scope.CompanyID, lines); err != nil {
			return err
		}

		existing, err := r.repo.PartialsByLines(ctx, scope.CompanyID, ids)
		if err != nil {
			return fmt.Errorf("failed to load settlements: %w", err)
		}

		created, err := r.match(ctx, scope.CompanyID, lines, existing)
		if err != nil {
			return err
		}

		// re-validate against the stored settlements, not the in-memory plan
		stored, err := r.repo.PartialsByLines(ctx, scope.CompanyID, ids)
		if err != nil {
			return fmt.Errorf("failed to reload settlements: %w", err)
		}
		for _, l := range lines {
			if _, err := Residual(l, stored); err != nil {
				return err
			}
		}

		full, err := r.settleGroup(ctx, scope.CompanyID, created)
		if err != nil {
			return err
		}

		result = &ReconcileResult{Partials: created, Full: full}
		return nil
	})
	if err != nil {
		return nil, err
	}

	partialIDs := make([]string, 0, len(result.Partials))
	for _, p := range result.Partials {
		partialIDs = append(partialIDs, p.ID.String())
	}
	data := map[string]interface{}{
		"line_ids":    ids,
		"partial_ids": partialIDs,
	}
	entityID := result.Partials[0].ID
	if result.Full != nil {
		data["full_settlement"] = result.Full.Name
		entityID = result.Full.ID
	}

	r.logger.Info("lines reconciled",
		"company_id", scope.CompanyID,
		"lines", len(ids),
		"partials", len(result.Partials),
		"full", result.Full != nil,
	)
	publish(ctx, r.publisher, r.logger, newEvent(scope, EventLinesReconciled, entityID, r.now(), data))

	return result, nil
}

func (r *Reconciler) lockLines(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*Line, error) {
	lines, err := r.repo.GetLinesForUpdate(ctx, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock lines: %w", err)
	}
	if len(lines) != len(ids) {
		return nil, ErrLineNotFound
	}
	return lines, nil
}

func (r *Reconciler) checkLines(ctx context.Context, companyID uuid.UUID, lines []*Line) error {
	accountID := lines[0].AccountID
	for _, l := range lines {
		if l.EntryState != EntryStatePosted {
			return wrapf(ErrLineNotPosted, "line %s", l.ID)
		}
		if l.AccountID != accountID {
			return ErrAccountMismatch
		}
	}

	account, err := r.chart.AccountInfo(ctx, companyID, accountID)
	if err != nil {
		return err
	}
	if !account.Reconcilable {
		return wrapf(ErrAccountNotReconcilable, "%s", account.Code)
	}
	return nil
}

type openLine struct {
	line     *Line
	residual decimal.Decimal
}

// match runs the greedy pairing and stores one partial per pair
func (r *Reconciler) match(ctx context.Context, companyID uuid.UUID, lines []*Line, existing []*PartialSettlement) ([]*PartialSettlement, error) {
	var debits, credits []*openLine
	for _, l := range lines {
		residual, err := Residual(l, existing)
		if err != nil {
			return nil, err
		}
		if !residual.IsPositive() {
			continue
		}
		switch {
		case l.IsDebitSide():
			debits = append(debits, &openLine{line: l, residual: residual})
		case l.IsCreditSide():
			credits = append(credits, &openLine{line: l, residual: residual})
		}
	}

	if len(debits) == 0 || len(credits) == 0 {
		return nil, ErrNothingToMatch
	}

	sortOpen(debits)
	sortOpen(credits)

	var created []*PartialSettlement
	i, j := 0, 0
	for i < len(debits) && j < len(credits) {
		d, c := debits[i], credits[j]
		amount := money.Min(d.residual, c.residual)

		partial := &PartialSettlement{
			ID:           uuid.New(),
			CompanyID:    companyID,
			DebitLineID:  d.line.ID,
			CreditLineID: c.line.ID,
			Amount:       amount,
			MaxDate:      maxDate(d.line.Date, c.line.Date),
			CreatedAt:    r.now(),
		}
		if err := r.repo.CreatePartial(ctx, partial); err != nil {
			return nil, fmt.Errorf("failed to create partial settlement: %w", err)
		}
		created = append(created, partial)

		d.residual = d.residual.Sub(amount)
		c.residual = c.residual.Sub(amount)
		if d.residual.IsZero() {
			i++
		}
		if c.residual.IsZero() {
			j++
		}
	}

	return created, nil
}

// settleGroup creates a full settlement when the lines reachable from the
// created partials all have zero residual
func (r *Reconciler) settleGroup(ctx context.Context, companyID uuid.UUID, created []*PartialSettlement) (*FullSettlement, error) {
	lines, partials, err := r.component(ctx, companyID, created)
	if err != nil {
		return nil, err
	}

	for _, l := range lines {
		residual, err := Residual(l, partials)
		if err != nil {
			return nil, err
		}
		if !residual.IsZero() {
			return nil, nil
		}
	}

	n, err := r.repo.NextSequence(ctx, companyID, "reconcile")
	if err != nil {
		return nil, fmt.Errorf("failed to draw settlement number: %w", err)
	}

	full := &FullSettlement{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      fmt.Sprintf("LET%05d", n),
		CreatedAt: r.now(),
	}
	for _, p := range partials {
		full.PartialIDs = append(full.PartialIDs, p.ID)
	}
	for _, l := range lines {
		full.LineIDs = append(full.LineIDs, l.ID)
	}

	if err := r.repo.CreateFull(ctx, full); err != nil {
		return nil, fmt.Errorf("failed to create full settlement: %w", err)
	}
	if err := r.repo.SetPartialsFullSettlement(ctx, companyID, full.PartialIDs, &full.ID); err != nil {
		return nil, fmt.Errorf("failed to attach partials: %w", err)
	}
	if err := r.repo.SetLinesFullSettlement(ctx, companyID, full.LineIDs, &full.ID); err != nil {
		return nil, fmt.Errorf("failed to attach lines: %w", err)
	}

	for _, p := range partials {
		p.FullSettlementID = &full.ID
	}
	return full, nil
}

// component walks partial settlements outward from the created ones and
// returns every connected line (locked) and partial
func (r *Reconciler) component(ctx context.Context, companyID uuid.UUID, created []*PartialSettlement) ([]*Line, []*PartialSettlement, error) {
	seenLines := make(map[uuid.UUID]bool)
	seenPartials := make(map[uuid.UUID]bool)
	var frontier []uuid.UUID
	for _, p := range created {
		for _, id := range []uuid.UUID{p.DebitLineID, p.CreditLineID} {
			if !seenLines[id] {
				seenLines[id] = true
				frontier = append(frontier, id)
			}
		}
	}

	var partials []*PartialSettlement
	lineIDs := append([]uuid.UUID(nil), frontier...)
	for len(frontier) > 0 {
		found, err := r.repo.PartialsByLines(ctx, companyID, frontier)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load settlements: %w", err)
		}
		frontier = frontier[:0]
		for _, p := range found {
			if seenPartials[p.ID] {
				continue
			}
			seenPartials[p.ID] = true
			partials = append(partials, p)
			for _, id := range []uuid.UUID{p.DebitLineID, p.CreditLineID} {
				if !seenLines[id] {
					seenLines[id] = true
					frontier = append(frontier, id)
					lineIDs = append(lineIDs, id)
				}
			}
		}
	}

	lines, err := r.lockLines(ctx, companyID, lineIDs)
	if err != nil {
		return nil, nil, err
	}
	return lines, partials, nil
}

// UnreconcilePartial deletes partial settlements. A full settlement that
// loses one of its partials no longer settles its lines and is dissolved;
// its remaining partials stay as plain partial settlements.
func (r *Reconciler) UnreconcilePartial(ctx context.Context, scope Scope, partialIDs []uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	ids := uniqueIDs(partialIDs)
	if len(ids) == 0 {
		return nil
	}

	var dissolved []uuid.UUID
	err := withinTx(ctx, r.repo, func(ctx context.Context) error {
		partials, err := r.repo.GetPartials(ctx, scope.CompanyID, ids)
		if err != nil {
			return fmt.Errorf("failed to load partial settlements: %w", err)
		}
		if len(partials) != len(ids) {
			return ErrPartialNotFound
		}

		var lineIDs []uuid.UUID
		fulls := make(map[uuid.UUID]bool)
		for _, p := range partials {
			lineIDs = append(lineIDs, p.DebitLineID, p.CreditLineID)
			if p.FullSettlementID != nil {
				fulls[*p.FullSettlementID] = true
			}
		}
		if _, err := r.repo.GetLinesForUpdate(ctx, scope.CompanyID, uniqueIDs(lineIDs)); err != nil {
			return fmt.Errorf("failed to lock lines: %w", err)
		}

		for _, p := range partials {
			if err := r.repo.DeletePartial(ctx, scope.CompanyID, p.ID); err != nil {
				return fmt.Errorf("failed to delete partial settlement: %w", err)
			}
		}

		for fullID := range fulls {
			if err := r.dissolve(ctx, scope.CompanyID, fullID); err != nil {
				return err
			}
			dissolved = append(dissolved, fullID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("partial settlements removed", "count", len(ids), "full_dissolved", len(dissolved))
	for _, id := range ids {
		publish(ctx, r.publisher, r.logger, newEvent(scope, EventSettlementRemoved, id, r.now(), map[string]interface{}{
			"kind": "partial",
		}))
	}
	for _, id := range dissolved {
		publish(ctx, r.publisher, r.logger, newEvent(scope, EventSettlementRemoved, id, r.now(), map[string]interface{}{
			"kind": "full",
		}))
	}
	return nil
}

// UnreconcileFull deletes a full settlement together with all its partials
func (r *Reconciler) UnreconcileFull(ctx context.Context, scope Scope, fullID uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	full, err := r.repo.GetFull(ctx, scope.CompanyID, fullID)
	if err != nil {
		return err
	}
	return r.UnreconcilePartial(ctx, scope, full.PartialIDs)
}

// UnreconcileLines deletes every partial settlement touching the lines
func (r *Reconciler) UnreconcileLines(ctx context.Context, scope Scope, lineIDs []uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	partials, err := r.repo.PartialsByLines(ctx, scope.CompanyID, uniqueIDs(lineIDs))
	if err != nil {
		return fmt.Errorf("failed to load settlements: %w", err)
	}
	if len(partials) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(partials))
	for _, p := range partials {
		ids = append(ids, p.ID)
	}
	return r.UnreconcilePartial(ctx, scope, ids)
}

// dissolve detaches the remaining partials and lines, then deletes the full settlement
func (r *Reconciler) dissolve(ctx context.Context, companyID, fullID uuid.UUID) error {
	full, err := r.repo.GetFull(ctx, companyID, fullID)
	if err != nil {
		return err
	}

	if len(full.PartialIDs) > 0 {
		if err := r.repo.SetPartialsFullSettlement(ctx, companyID, full.PartialIDs, nil); err != nil {
			return fmt.Errorf("failed to detach partials: %w", err)
		}
	}
	if len(full.LineIDs) > 0 {
		if err := r.repo.SetLinesFullSettlement(ctx, companyID, full.LineIDs, nil); err != nil {
			return fmt.Errorf("failed to detach lines: %w", err)
		}
	}

	if err := r.repo.DeleteFull(ctx, companyID, fullID); err != nil {
		return fmt.Errorf("failed to delete full settlement: %w", err)
	}
	return nil
}

func sortOpen(lines []*openLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lineLess(lines[i].line, lines[j].line)
	})
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
