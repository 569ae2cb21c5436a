package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"court-desk/logging"
	"court-desk/metrics"
	"court-desk/tracing"
	"court-desk/types"
)

// ErrSubmitInProgress is returned when Confirm is tapped while a submission runs.
var ErrSubmitInProgress = errors.New("booking is already being submitted")

// ValidationError lists every problem found before any network call.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "booking is incomplete: " + strings.Join(e.Problems, "; ")
}

// Conflict is one selected slot that turned out to be booked.
type Conflict struct {
	CourtID  string
	Timeslot types.Timeslot
	Label    string
}

// ConflictError reports slots booked by someone else since they were selected.
// Those slots have already been removed from the draft.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	labels := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		labels = append(labels, c.Label)
	}
	return "no longer available: " + strings.Join(labels, ", ")
}

// Backend is what the pipeline needs from the REST client.
type Backend interface {
	OccupiedSlots(ctx context.Context, courtID, date string) ([]string, error)
	CreateWalkInBooking(ctx context.Context, req types.WalkInBookingRequest) (types.Booking, error)
}

// RefreshFunc is called after a booking is committed.
type RefreshFunc func(ctx context.Context, b types.Booking)

// Submitter runs validation, the availability recheck and the create call for a wizard.
// It holds no per-booking state and is shared by every chat.
type Submitter struct {
	backend  Backend
	now      func() time.Time
	onCommit RefreshFunc
	tracer   trace.Tracer
}

// NewSubmitter builds the submission pipeline. now must return time in the venue's zone.
func NewSubmitter(backend Backend, now func() time.Time, onCommit RefreshFunc) *Submitter {
	return &Submitter{
		backend:  backend,
		now:      now,
		onCommit: onCommit,
		tracer:   tracing.Tracer("booking"),
	}
}

// SlotLabel renders "10:00-11:00 (Court A)".
func SlotLabel(ts types.Timeslot, courtName string) string {
	return fmt.Sprintf("%s (%s)", ts.Label(), courtName)
}

// Submit validates the draft, rechecks availability and creates the booking with a
// single call. On any failure the draft is kept and nothing exists server-side.
func (s *Submitter) Submit(ctx context.Context, w *Wizard) (types.Booking, error) {
	if err := w.begin(); err != nil {
		return types.Booking{}, err
	}

	b, result, err := s.submit(ctx, w)
	metrics.BookingsSubmitted.WithLabelValues(result).Inc()
	if err != nil {
		w.setState(StateRejected)
		logging.FromContext(ctx).WithError(err).WithField("result", result).Info("booking rejected")
		return types.Booking{}, err
	}

	w.commit()
	logging.FromContext(ctx).WithField("booking_id", b.ID).Info("booking committed")
	if s.onCommit != nil {
		s.onCommit(ctx, b)
	}
	return b, nil
}

func (s *Submitter) submit(ctx context.Context, w *Wizard) (types.Booking, string, error) {
	draft := w.Draft()

	if err := s.validate(ctx, draft); err != nil {
		return types.Booking{}, "invalid", err
	}

	w.setState(StateRechecking)
	if err := s.recheck(ctx, w, draft); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return types.Booking{}, "conflict", err
		}
		return types.Booking{}, "recheck_failed", err
	}

	w.setState(StateSubmitting)
	b, err := s.create(ctx, draft)
	if err != nil {
		return types.Booking{}, "rejected", err
	}
	return b, "committed", nil
}

func (s *Submitter) validate(ctx context.Context, d Draft) error {
	_, span := s.tracer.Start(ctx, "booking.validate")
	defer span.End()

	err := Validate(d, s.now())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Validate runs the checks that need no network.
func Validate(d Draft, now time.Time) error {
	var problems []string

	if d.SlotCount() == 0 {
		problems = append(problems, "select at least one timeslot")
	}
	for _, c := range d.Courts {
		for _, ts := range c.Slots {
			if ResolveSlot(ts, d.Date, nil, nil, now) == SlotExpired {
				problems = append(problems, SlotLabel(ts, c.Court.Name)+" has already started")
			}
		}
	}
	if strings.TrimSpace(d.Customer.Name) == "" {
		problems = append(problems, "customer name is required")
	}
	if d.Staff {
		if d.Method == "" {
			problems = append(problems, "choose a payment method")
		}
		if d.AmountPaid <= 0 {
			problems = append(problems, "amount paid must be greater than zero")
		}
	}
	if d.AmountPaid > d.Quote.Total {
		problems = append(problems, fmt.Sprintf("amount paid %s exceeds total %s", d.AmountPaid, d.Quote.Total))
	}
	for _, item := range d.Equipment {
		if q := d.Quantities[item.ID]; q > item.MaxSelectable() {
			problems = append(problems, fmt.Sprintf("%s: %d requested, at most %d", item.Name, q, item.MaxSelectable()))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// recheck refetches the occupied set of every selected court concurrently. Conflicting
// slots are dropped from the selection and reported.
func (s *Submitter) recheck(ctx context.Context, w *Wizard, d Draft) error {
	ctx, span := s.tracer.Start(ctx, "booking.recheck")
	defer span.End()
	span.SetAttributes(attribute.Int("courts", len(d.Courts)))

	var (
		mu      sync.Mutex
		fetched = make(map[string][]string, len(d.Courts))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range d.Courts {
		courtID := c.Court.ID
		g.Go(func() error {
			times, err := s.backend.OccupiedSlots(gctx, courtID, d.Date)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched[courtID] = times
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("could not confirm availability: %w", err)
	}

	var conflicts []Conflict
	for _, c := range d.Courts {
		for _, ts := range w.selection.ApplyOccupied(c.Court.ID, fetched[c.Court.ID]) {
			conflicts = append(conflicts, Conflict{
				CourtID:  c.Court.ID,
				Timeslot: ts,
				Label:    SlotLabel(ts, c.Court.Name),
			})
		}
	}
	if len(conflicts) > 0 {
		metrics.AvailabilityConflicts.Add(float64(len(conflicts)))
		err := &ConflictError{Conflicts: conflicts}
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Submitter) create(ctx context.Context, d Draft) (types.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.submit")
	defer span.End()

	req := BuildRequest(d)
	span.SetAttributes(
		attribute.String("date", req.Date),
		attribute.Int("slots", len(req.TimeSlots)),
		attribute.Int64("total", int64(req.TotalAmount)),
	)

	b, err := s.backend.CreateWalkInBooking(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Booking{}, err
	}
	return b, nil
}

// BuildRequest assembles the walk-in payload from a validated draft.
func BuildRequest(d Draft) types.WalkInBookingRequest {
	req := types.WalkInBookingRequest{
		Date:          d.Date,
		Courts:        make([]types.BookedCourt, 0, len(d.Courts)),
		TimeSlots:     make([]string, 0, d.SlotCount()),
		Equipment:     d.Lines,
		Customer:      d.Customer,
		PaymentMethod: d.Method,
		PaymentStatus: types.PaymentPaid,
		Discount:      d.Quote.Discount,
		TotalAmount:   d.Quote.Total,
		AmountPaid:    d.AmountPaid,
		Status:        types.StatusConfirmed,
		Notes:         d.Notes,
	}
	if req.Equipment == nil {
		req.Equipment = []types.EquipmentLine{}
	}
	if d.AmountPaid < d.Quote.Total {
		req.PaymentStatus = types.PaymentPartial
	}

	for _, c := range d.Courts {
		bc := types.BookedCourt{CourtID: c.Court.ID, CourtName: c.Court.Name}
		for _, ts := range c.Slots {
			bc.TimeslotIDs = append(bc.TimeslotIDs, ts.ID)
			req.TimeSlots = append(req.TimeSlots, SlotLabel(ts, c.Court.Name))
		}
		req.Courts = append(req.Courts, bc)
	}
	return req
}
