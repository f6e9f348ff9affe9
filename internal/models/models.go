package models

import "time"

// Hire is a customer's ride request as stored in the record store.
// A hire is pending until a driver is confirmed; once Driverid is set and
// Ispending is false it leaves the assignment queue for good.
type Hire struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	PickLocation    string     `json:"pick_location"`
	DropOffLocation string     `json:"drop_off_location"`
	Date            Timestamp  `json:"date"`
	Time            Timestamp  `json:"time"`
	VehicleType     string     `json:"vehicle_type"`
	Passengers      int        `json:"passengers"`
	IsRoundTrip     bool       `json:"isroundtrip"`
	ReturnDate      Timestamp  `json:"return_date"`
	ReturnTime      Timestamp  `json:"return_time"`
	PrimaryPhone    FlexString `json:"primary_phone"`
	Description     string     `json:"description"`
	Driverid        string     `json:"driverid"`
	Ispending       bool       `json:"ispending"`
	AcceptedAt      Timestamp  `json:"accepted_at"`
	IsCompleted     bool       `json:"is_completed"`
	IsCancelled     bool       `json:"is_cancelled"`
	CompletedAt     Timestamp  `json:"completed_at"`
	Created1        Timestamp  `json:"created1"`
	Created         Timestamp  `json:"created"`
	Updated         Timestamp  `json:"updated"`

	Expand HireExpand `json:"expand"`
}

// HireExpand holds server-side relation expansions on a hire record.
type HireExpand struct {
	User *Customer `json:"user_id"`
}

// DriverRequest is a driver's expression of interest in one hire
// (a request_handle record). At most one request per hire ever gets
// accepted, and that acceptance must coincide with the hire pointing
// at the same driver.
type DriverRequest struct {
	ID         string    `json:"id"`
	HireID     string    `json:"hire_id"`
	DriverID   string    `json:"driver_id"`
	IsAccepted bool      `json:"is_accepted"`
	AcceptedAt Timestamp `json:"accepted_at"`
	Created    Timestamp `json:"created"`

	Expand RequestExpand `json:"expand"`
}

type RequestExpand struct {
	Driver *Driver `json:"driver_id"`
}

// Customer is read-only from this service's perspective.
type Customer struct {
	ID          string     `json:"id"`
	FullName    string     `json:"full_name"`
	PhoneNumber FlexString `json:"phonenumber"`
	UserType    string     `json:"usertype"`
	IsVerified  bool       `json:"isverified"`
	Email       string     `json:"email"`
	IDNumber    string     `json:"idnumber"`
	Photo       string     `json:"photo"`
	Created     Timestamp  `json:"created"`
	Updated     Timestamp  `json:"updated"`
}

// Driver is read-only here except for the annual-fee flag.
type Driver struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	PhoneNumber       FlexString `json:"phonenumber"`
	Email             string     `json:"email"`
	Address           string     `json:"address"`
	LicenseNo         string     `json:"license_no"`
	Photo             string     `json:"photo"`
	PaymentSlip       string     `json:"payment_slip"`
	IsVerified        bool       `json:"isverified"`
	IsApproved        bool       `json:"isApproved"`
	AnnualFeePaid     bool       `json:"anuualfee_paid"`
	OneSignalPlayerID string     `json:"onesignal_player_id"`
	Created           Timestamp  `json:"created"`
	Updated           Timestamp  `json:"updated"`
}

// Commission is a driver commission record. The collection and field
// names keep the store's original spelling (commitions, commition,
// ispayed).
type Commission struct {
	ID         string    `json:"id"`
	HireID     string    `json:"hireid"`
	DriverID   string    `json:"driverid"`
	CustomerID string    `json:"customer_id"`
	BaseAmount float64   `json:"base_amount"`
	Commission float64   `json:"commition"`
	IsPaid     bool      `json:"ispayed"`
	Created    Timestamp `json:"created"`

	Expand CommissionExpand `json:"expand"`
}

type CommissionExpand struct {
	Driver *Driver `json:"driverid"`
}

type VehicleType struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Created Timestamp `json:"created"`
}

type VehicleModel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TypeID string `json:"type_id"`

	Expand struct {
		Type *VehicleType `json:"type_id"`
	} `json:"expand"`
}

// CustomerProfile is the normalized projection the queue works with,
// whether it came from relation expansion or the fallback lookup table.
type CustomerProfile struct {
	UserType    UserType `json:"usertype"`
	PhoneNumber string   `json:"phonenumber"`
	FullName    string   `json:"full_name"`
}

// AssignmentEvent is published after a driver is confirmed for a hire.
type AssignmentEvent struct {
	HireID        string    `json:"hire_id"`
	DriverID      string    `json:"driver_id"`
	RequestID     string    `json:"request_id,omitempty"`
	RequestMarked bool      `json:"request_marked"`
	AssignedAt    time.Time `json:"assigned_at"`
}
