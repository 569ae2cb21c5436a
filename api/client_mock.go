package api

import (
	"context"
	"sync"

	"court-desk/types"
)

// BackendMock stands in for the booking-related endpoints in tests.
type BackendMock struct {
	mock sync.Mutex

	Slots        []types.Timeslot
	TimeslotsErr error
	Occupied     map[string][]string
	OccupiedErr  error
	CreateErr    error

	Created       []types.WalkInBookingRequest
	TimeslotCalls int
	OccupiedCalls int
}

func occupiedKey(courtID, date string) string {
	return courtID + "|" + date
}

func (m *BackendMock) SetOccupied(courtID, date string, times ...string) {
	m.mock.Lock()
	defer m.mock.Unlock()
	if m.Occupied == nil {
		m.Occupied = make(map[string][]string)
	}
	m.Occupied[occupiedKey(courtID, date)] = times
}

func (m *BackendMock) SetOccupiedErr(err error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.OccupiedErr = err
}

func (m *BackendMock) Timeslots(ctx context.Context) ([]types.Timeslot, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.TimeslotCalls++
	if m.TimeslotsErr != nil {
		return nil, m.TimeslotsErr
	}
	return append([]types.Timeslot(nil), m.Slots...), nil
}

func (m *BackendMock) OccupiedSlots(ctx context.Context, courtID, date string) ([]string, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.OccupiedCalls++
	if m.OccupiedErr != nil {
		return nil, m.OccupiedErr
	}
	return append([]string(nil), m.Occupied[occupiedKey(courtID, date)]...), nil
}

func (m *BackendMock) CreateWalkInBooking(ctx context.Context, req types.WalkInBookingRequest) (types.Booking, error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.Created = append(m.Created, req)
	if m.CreateErr != nil {
		return types.Booking{}, m.CreateErr
	}
	return types.Booking{
		ID:            "bk-1",
		Date:          req.Date,
		Courts:        req.Courts,
		TimeSlots:     req.TimeSlots,
		Equipment:     req.Equipment,
		Customer:      req.Customer,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: req.PaymentStatus,
		TotalAmount:   req.TotalAmount,
		AmountPaid:    req.AmountPaid,
		Status:        req.Status,
	}, nil
}

func (m *BackendMock) CreatedCount() int {
	m.mock.Lock()
	defer m.mock.Unlock()
	return len(m.Created)
}
