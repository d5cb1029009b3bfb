package simulate

import (
	"fmt"

	"github.com/lgreene/tracksim/schemas"
)

// User is a returning visitor: the same address and place on every draw.
type User struct {
	IP       string
	Location schemas.GeoLocation
}

// UserPool is built once and read-only afterwards.
type UserPool struct {
	users []User
}

// NewUserPool generates size users with random 192.168.x.y addresses and a
// location drawn uniformly from locations.
func NewUserPool(size int, locations []schemas.GeoLocation, rnd *Rand) (*UserPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("user pool size must be at least 1 (got %d)", size)
	}
	if len(locations) == 0 {
		return nil, errEmpty("locations")
	}

	users := make([]User, size)
	for i := range users {
		users[i] = User{
			IP:       fmt.Sprintf("192.168.%d.%d", rnd.IntRange(1, 255), rnd.IntRange(1, 255)),
			Location: locations[rnd.Intn(len(locations))],
		}
	}
	return &UserPool{users: users}, nil
}

// NewFixedUserPool wraps an explicit list of users.
func NewFixedUserPool(users ...User) (*UserPool, error) {
	if len(users) == 0 {
		return nil, errEmpty("users")
	}
	return &UserPool{users: append([]User(nil), users...)}, nil
}

func (p *UserPool) Len() int { return len(p.users) }

// Pick draws a user uniformly.
func (p *UserPool) Pick(rnd *Rand) User {
	return p.users[rnd.Intn(len(p.users))]
}

// Users returns a copy of the pool.
func (p *UserPool) Users() []User {
	return append([]User(nil), p.users...)
}

func errEmpty(what string) error {
	return fmt.Errorf("%s must not be empty", what)
}

func errInvalidType(t schemas.EventType) error {
	return fmt.Errorf("event type %q is not supported", t)
}
