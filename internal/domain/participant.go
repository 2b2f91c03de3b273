package domain

// Role is the side a participant takes on a relationship or booking.
type Role string

const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTrainer, RoleClient:
		return true
	}
	return false
}
