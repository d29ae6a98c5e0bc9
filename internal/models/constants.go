package models

const (
	StatusReserved  = "reserved"
	StatusCheckIn   = "check_in"
	StatusCleaning  = "cleaning"
	StatusCheckOut  = "check_out"
	StatusCancelled = "cancelled"
)

const (
	PaymentSigned    = "signed"
	PaymentCompleted = "completed"
	PaymentUnpaid    = "unpaid"
)

const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"
)

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	// DefaultPageSize is used when a list request does not specify per_page.
	DefaultPageSize = 25
	// MaxPageSize caps per_page on list endpoints.
	MaxPageSize = 100

	// DefaultMaxStayNights limits a single reservation length.
	DefaultMaxStayNights = 60
	// DefaultMaxAdvanceDays limits how far ahead a stay may start.
	DefaultMaxAdvanceDays = 365

	// StatsCacheTTL is how long dashboard stats stay cached, in seconds.
	StatsCacheTTL = 60
)
