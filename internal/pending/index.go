package pending

import "github.com/example/taxi-admin/internal/models"

// BuildCustomerIndex projects fetched customer records into the fallback
// lookup table keyed by customer id. It exists because the store's
// relation expansion is not always populated; the queue resolves through
// this map whenever the expand sub-object comes back empty.
func BuildCustomerIndex(customers []models.Customer) map[string]models.CustomerProfile {
	idx := make(map[string]models.CustomerProfile, len(customers))
	for _, c := range customers {
		idx[c.ID] = profileFromCustomer(c)
	}
	return idx
}

// BuildRequestIndex groups driver requests by hire id, preserving the
// order in which they arrived from the fetch.
func BuildRequestIndex(requests []models.DriverRequest) map[string][]models.DriverRequest {
	idx := make(map[string][]models.DriverRequest)
	for _, r := range requests {
		idx[r.HireID] = append(idx[r.HireID], r)
	}
	return idx
}

func profileFromCustomer(c models.Customer) models.CustomerProfile {
	name := c.FullName
	if name == "" {
		name = "Unknown Customer"
	}
	return models.CustomerProfile{
		UserType:    models.NormalizeUserType(c.UserType),
		PhoneNumber: c.PhoneNumber.String(),
		FullName:    name,
	}
}
