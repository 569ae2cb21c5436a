package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"court-desk/logging"
	"court-desk/metrics"
	"court-desk/types"
)

// OccupiedSlots returns the booked start times ("HH:MM") of a court on a date.
// When the primary endpoint fails, the employee-bookings endpoint is tried once.
// Results are never cached.
func (c *Client) OccupiedSlots(ctx context.Context, courtID, date string) ([]string, error) {
	q := url.Values{"courtId": []string{courtID}, "date": []string{date}}

	times := make([]string, 0)
	err := c.do(ctx, call{endpoint: "occupied.primary", method: http.MethodGet, path: "/booked-timeslots/occupied", query: q}, &times)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
			"court_id": courtID,
			"date":     date,
		}).Warn("occupied slots: primary endpoint failed, trying employee-bookings")
		metrics.OccupiedFallbacks.WithLabelValues("endpoint").Inc()

		times = make([]string, 0)
		if err := c.do(ctx, call{endpoint: "occupied.fallback", method: http.MethodGet, path: "/employee-bookings/occupied-slots", query: q}, &times); err != nil {
			return nil, fmt.Errorf("occupied slots for court %s on %s: %w", courtID, date, err)
		}
	}

	for i := range times {
		times[i] = normalizeTime(times[i])
	}
	return times, nil
}

func (c *Client) CreateWalkInBooking(ctx context.Context, req types.WalkInBookingRequest) (types.Booking, error) {
	var booking types.Booking
	err := c.do(ctx, call{endpoint: "walkin.create", method: http.MethodPost, path: "/employee-bookings/Add", body: req}, &booking)
	if err != nil {
		return types.Booking{}, err
	}
	return booking, nil
}

func (c *Client) UpdateWalkInBooking(ctx context.Context, id string, update types.BookingUpdate) error {
	return c.do(ctx, call{
		endpoint: "walkin.update",
		method:   http.MethodPut,
		path:     "/employee-bookings/Update",
		query:    idQuery(id),
		body:     update,
	}, nil)
}

func (c *Client) DeleteWalkInBooking(ctx context.Context, id string) error {
	return c.do(ctx, call{
		endpoint: "walkin.delete",
		method:   http.MethodDelete,
		path:     "/employee-bookings/Delete",
		query:    idQuery(id),
		admin:    true,
	}, nil)
}

func (c *Client) Bookings(ctx context.Context, filter types.BookingFilter) ([]types.Booking, error) {
	q := url.Values{}
	if filter.Date != "" {
		q.Set("date", filter.Date)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.CourtID != "" {
		q.Set("courtId", filter.CourtID)
	}

	bookings := make([]types.Booking, 0)
	if err := c.do(ctx, call{endpoint: "bookings.list", method: http.MethodGet, path: "/bookings/GetAll", query: q}, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (c *Client) UpdateBooking(ctx context.Context, id string, update types.BookingUpdate) error {
	return c.do(ctx, call{
		endpoint: "bookings.update",
		method:   http.MethodPut,
		path:     "/bookings/Update",
		query:    idQuery(id),
		body:     update,
	}, nil)
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	return c.do(ctx, call{
		endpoint: "bookings.delete",
		method:   http.MethodDelete,
		path:     "/bookings/Delete",
		query:    idQuery(id),
		admin:    true,
	}, nil)
}
