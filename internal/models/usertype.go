package models

// UserType classifies a customer account and decides which staff queue
// a hire lands in.
type UserType string

const (
	UserTypeBusiness   UserType = "business_customer"
	UserTypeNormal     UserType = "normal"
	UserTypeCabService UserType = "cab_service"
	// UserTypeUnspecified covers missing or unresolvable classifications.
	UserTypeUnspecified UserType = ""
)

// NormalizeUserType folds the store's spelling variants into the
// canonical constants. Older customer records carry "normal_customer"
// where newer ones carry "normal".
func NormalizeUserType(raw string) UserType {
	switch raw {
	case "business_customer":
		return UserTypeBusiness
	case "normal", "normal_customer":
		return UserTypeNormal
	case "cab_service":
		return UserTypeCabService
	default:
		return UserTypeUnspecified
	}
}

// QueueEligible reports whether hires from this customer type belong in
// the staff assignment queue. Cab-service accounts are handled on a
// separate screen and never show up here.
func (t UserType) QueueEligible() bool {
	switch t {
	case UserTypeBusiness, UserTypeNormal, UserTypeUnspecified:
		return true
	default:
		return false
	}
}
