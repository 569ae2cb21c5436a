package booking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"court-desk/logging"
	"court-desk/metrics"
	"court-desk/types"
)

var (
	ErrSlotOccupied     = errors.New("this slot is already booked")
	ErrSlotExpired      = errors.New("this slot has already started")
	ErrCourtNotSelected = errors.New("court is not selected")
	ErrUnknownSlot      = errors.New("timeslot does not belong to this court")
	ErrStaleLoad        = errors.New("court load superseded")
	ErrNoDate           = errors.New("pick a date first")
)

// Loader fetches what a court needs for one date.
type Loader interface {
	Timeslots(ctx context.Context) ([]types.Timeslot, error)
	OccupiedSlots(ctx context.Context, courtID, date string) ([]string, error)
}

type courtState struct {
	court    types.Court
	catalog  []types.Timeslot
	occupied OccupiedSet
	selected map[string]bool
	warning  string
}

// Selection aggregates per-court timeslot choices for one date.
// Each court is loaded independently; a load whose token no longer matches is dropped.
type Selection struct {
	mu      sync.Mutex
	loader  Loader
	date    string
	courts  map[string]*courtState
	loading map[string]string
	closed  bool
}

// NewSelection returns an empty selection that loads court data through loader.
func NewSelection(loader Loader) *Selection {
	return &Selection{
		loader:  loader,
		courts:  make(map[string]*courtState),
		loading: make(map[string]string),
	}
}

// Date is the booking date the selection was made for, "YYYY-MM-DD".
func (s *Selection) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// SetDate switches the date. Catalogs are date-scoped, so every court is dropped
// and in-flight loads become stale.
func (s *Selection) SetDate(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.date == date {
		return
	}
	s.date = date
	s.clearLocked()
}

// Reset drops the date and every court.
func (s *Selection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.date = ""
	s.clearLocked()
}

// Close marks the selection dead. Loads still in flight finish but are discarded.
func (s *Selection) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.clearLocked()
}

func (s *Selection) clearLocked() {
	s.courts = make(map[string]*courtState)
	s.loading = make(map[string]string)
}

// IsSelected reports whether the court is part of the selection.
func (s *Selection) IsSelected(courtID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.courts[courtID]
	return ok
}

// ToggleCourt deselects a selected (or loading) court, or selects it by loading its
// timeslots and occupied set concurrently. It reports whether the court ends up selected.
func (s *Selection) ToggleCourt(ctx context.Context, court types.Court) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrStaleLoad
	}
	if s.date == "" {
		s.mu.Unlock()
		return false, ErrNoDate
	}
	if _, ok := s.courts[court.ID]; ok {
		delete(s.courts, court.ID)
		s.mu.Unlock()
		return false, nil
	}
	if _, ok := s.loading[court.ID]; ok {
		delete(s.loading, court.ID)
		s.mu.Unlock()
		return false, nil
	}
	token := uuid.NewString()
	s.loading[court.ID] = token
	date := s.date
	s.mu.Unlock()

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"court_id": court.ID,
		"date":     date,
	})

	var (
		g           errgroup.Group
		catalog     []types.Timeslot
		occupied    []string
		occupiedErr error
	)
	g.Go(func() error {
		all, err := s.loader.Timeslots(ctx)
		if err != nil {
			return err
		}
		catalog = courtTimeslots(court, all)
		return nil
	})
	g.Go(func() error {
		occupied, occupiedErr = s.loader.OccupiedSlots(ctx, court.ID, date)
		return nil
	})
	loadErr := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.date != date || s.loading[court.ID] != token {
		log.Debug("discarding stale court load")
		return false, ErrStaleLoad
	}
	delete(s.loading, court.ID)

	if loadErr != nil {
		return false, loadErr
	}

	cs := &courtState{
		court:    court,
		catalog:  catalog,
		occupied: NewOccupiedSet(occupied),
		selected: make(map[string]bool),
	}
	if occupiedErr != nil {
		log.WithError(occupiedErr).Warn("occupied slots unavailable, showing every slot as free")
		metrics.OccupiedFallbacks.WithLabelValues("optimistic").Inc()
		cs.occupied = OccupiedSet{}
		cs.warning = "Could not load booked slots for " + court.Name + ". Availability is not guaranteed."
	}
	s.courts[court.ID] = cs
	return true, nil
}

// courtTimeslots picks the court's active timeslots. When none carry the court's ID,
// it matches on court name or category, case-insensitively.
func courtTimeslots(court types.Court, all []types.Timeslot) []types.Timeslot {
	byID := make([]types.Timeslot, 0)
	fallback := make([]types.Timeslot, 0)
	for _, ts := range all {
		if !ts.Active {
			continue
		}
		if ts.CourtID == court.ID {
			byID = append(byID, ts)
			continue
		}
		if (ts.CourtName != "" && strings.EqualFold(ts.CourtName, court.Name)) ||
			(ts.Category != "" && strings.EqualFold(ts.Category, court.Category)) {
			fallback = append(fallback, ts)
		}
	}

	out := byID
	if len(out) == 0 {
		out = fallback
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// ToggleSlot flips one timeslot. Occupied and expired slots are refused and the
// selection is left untouched.
func (s *Selection) ToggleSlot(courtID, slotID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.courts[courtID]
	if !ok {
		return false, ErrCourtNotSelected
	}
	ts, ok := cs.find(slotID)
	if !ok {
		return false, ErrUnknownSlot
	}

	switch ResolveSlot(ts, s.date, cs.selected, cs.occupied, now) {
	case SlotExpired:
		return false, ErrSlotExpired
	case SlotOccupied:
		return false, ErrSlotOccupied
	case SlotSelected:
		delete(cs.selected, slotID)
		return false, nil
	default:
		cs.selected[slotID] = true
		return true, nil
	}
}

func (cs *courtState) find(slotID string) (types.Timeslot, bool) {
	for _, ts := range cs.catalog {
		if ts.ID == slotID {
			return ts, true
		}
	}
	return types.Timeslot{}, false
}

// ApplyOccupied replaces a court's occupied set and drops selected slots that are now
// taken. It returns the dropped timeslots.
func (s *Selection) ApplyOccupied(courtID string, times []string) []types.Timeslot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.courts[courtID]
	if !ok {
		return nil
	}
	cs.occupied = NewOccupiedSet(times)
	cs.warning = ""

	var dropped []types.Timeslot
	for _, ts := range cs.catalog {
		if cs.selected[ts.ID] && cs.occupied.Has(ts.StartTime) {
			delete(cs.selected, ts.ID)
			dropped = append(dropped, ts)
		}
	}
	return dropped
}

// HasSelection reports whether at least one court has at least one selected slot.
func (s *Selection) HasSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cs := range s.courts {
		if len(cs.selected) > 0 {
			return true
		}
	}
	return false
}

// SlotView is one timeslot with its resolved state, ready to render.
type SlotView struct {
	Timeslot types.Timeslot
	State    SlotState
}

// CourtView is a selected court with its timeslots in start order.
// Warning is set when occupancy could not be loaded.
type CourtView struct {
	Court   types.Court
	Slots   []SlotView
	Warning string
}

// View resolves every timeslot of the selected courts, ordered by court name.
func (s *Selection) View(now time.Time) []CourtView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]CourtView, 0, len(s.courts))
	for _, cs := range s.courts {
		v := CourtView{Court: cs.court, Warning: cs.warning}
		for _, ts := range cs.catalog {
			v.Slots = append(v.Slots, SlotView{
				Timeslot: ts,
				State:    ResolveSlot(ts, s.date, cs.selected, cs.occupied, now),
			})
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Court.Name < views[j].Court.Name })
	return views
}

// SelectedCourt is a court together with the timeslots picked on it.
type SelectedCourt struct {
	Court types.Court
	Slots []types.Timeslot
}

// Selected returns courts with at least one chosen slot, ordered by court name,
// slots ordered by start time.
func (s *Selection) Selected() []SelectedCourt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SelectedCourt, 0, len(s.courts))
	for _, cs := range s.courts {
		sc := SelectedCourt{Court: cs.court}
		for _, ts := range cs.catalog {
			if cs.selected[ts.ID] {
				sc.Slots = append(sc.Slots, ts)
			}
		}
		if len(sc.Slots) > 0 {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Court.Name < out[j].Court.Name })
	return out
}
