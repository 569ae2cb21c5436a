package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Money is an amount in whole Malawian kwacha.
type Money int64

// String renders the amount as "MWK 5,000".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sMWK %s", sign, b.String())
}

// Court is a bookable court managed by admins
type Court struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	HourlyPrice Money  `json:"hourlyPrice"`
	Active      bool   `json:"isActive"`
}

// Timeslot is a fixed-price window on one court. Times are "HH:MM".
type Timeslot struct {
	ID        string `json:"id"`
	CourtID   string `json:"courtId"`
	CourtName string `json:"courtName,omitempty"`
	Category  string `json:"category,omitempty"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Price     Money  `json:"price"`
	Peak      bool   `json:"isPeak"`
	Active    bool   `json:"isActive"`
}

// Label is "09:00-10:00".
func (t Timeslot) Label() string {
	return t.StartTime + "-" + t.EndTime
}

type Equipment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unitPrice"`
	Stock     int    `json:"stock"`
	Active    bool   `json:"isActive"`
}

// MaxPerBooking is the most units of one item a single booking may rent.
const MaxPerBooking = 10

// MaxSelectable returns min(stock, MaxPerBooking), never below zero.
func (e Equipment) MaxSelectable() int {
	n := e.Stock
	if n > MaxPerBooking {
		n = MaxPerBooking
	}
	if n < 0 {
		return 0
	}
	return n
}

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

var BookingStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

func ParseBookingStatus(s string) (BookingStatus, error) {
	for _, st := range BookingStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentAirtelMoney  PaymentMethod = "airtel_money"
	PaymentMpamba       PaymentMethod = "tnm_mpamba"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentAirtelMoney, PaymentMpamba, PaymentCard, PaymentBankTransfer}

func (p PaymentMethod) Title() string {
	switch p {
	case PaymentCash:
		return "Cash"
	case PaymentAirtelMoney:
		return "Airtel Money"
	case PaymentMpamba:
		return "TNM Mpamba"
	case PaymentCard:
		return "Card"
	case PaymentBankTransfer:
		return "Bank transfer"
	}
	return string(p)
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
	PaymentUnpaid  PaymentStatus = "unpaid"
)

// Customer holds the contact fields captured at step 4.
type Customer struct {
	Name  string `json:"customerName"`
	Phone string `json:"customerPhone,omitempty"`
	Email string `json:"customerEmail,omitempty"`
}

// EquipmentLine is one rented item with its computed line total.
type EquipmentLine struct {
	EquipmentID string `json:"equipmentId"`
	Name        string `json:"name"`
	UnitPrice   Money  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   Money  `json:"lineTotal"`
}

// BookedCourt is one court of a multi-court booking.
type BookedCourt struct {
	CourtID     string   `json:"courtId"`
	CourtName   string   `json:"courtName"`
	TimeslotIDs []string `json:"timeslotIds"`
}

// WalkInBookingRequest is the body of POST /employee-bookings/Add.
type WalkInBookingRequest struct {
	Date          string          `json:"date"`
	Courts        []BookedCourt   `json:"courts"`
	TimeSlots     []string        `json:"timeSlots"`
	Equipment     []EquipmentLine `json:"equipment"`
	Customer
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Discount      Money         `json:"discount"`
	TotalAmount   Money         `json:"totalAmount"`
	AmountPaid    Money         `json:"amountPaid"`
	Status        BookingStatus `json:"status"`
	Notes         string        `json:"notes,omitempty"`
}

// Booking is the committed record owned by the backend.
type Booking struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Courts        []BookedCourt   `json:"courts"`
	TimeSlots     []string        `json:"timeSlots"`
	Equipment     []EquipmentLine `json:"equipment"`
	Customer
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	TotalAmount   Money         `json:"totalAmount"`
	AmountPaid    Money         `json:"amountPaid"`
	Status        BookingStatus `json:"status"`
	Source        string        `json:"source,omitempty"`
}

// BookingUpdate is the body of PUT /bookings/Update. Nil fields are left unchanged.
type BookingUpdate struct {
	Status        *BookingStatus `json:"status,omitempty"`
	AmountPaid    *Money         `json:"amountPaid,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentMethod *PaymentMethod `json:"paymentMethod,omitempty"`
}

// BookingFilter narrows GET /bookings/GetAll.
type BookingFilter struct {
	Date    string
	Status  BookingStatus
	CourtID string
}

type Expense struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Date        string `json:"date"`
	// Mock marks demo records served while the expenses backend is missing.
	Mock bool `json:"-"`
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Session is a logged-in staff member bound to one Telegram chat.
type Session struct {
	ChatID    int64     `json:"chatId"`
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s Session) IsAdmin() bool {
	return s.User.Role == RoleAdmin
}
