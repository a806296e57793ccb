package person

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/person/entity"
)

// DefaultAdminRatio is the share of registrations that become ADMIN.
const DefaultAdminRatio = 0.2

// RoleAssigner picks the role of a newly registered person.
type RoleAssigner interface {
	Assign() entity.Role
}

// RandomRoleAssigner returns ADMIN with probability AdminRatio. It is safe
// for concurrent use.
type RandomRoleAssigner struct {
	AdminRatio float64
	Rand       *rand.Rand

	mu sync.Mutex
}

func NewRandomRoleAssigner(ratio float64, seed int64) *RandomRoleAssigner {
	if ratio < 0 || ratio > 1 {
		ratio = DefaultAdminRatio
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomRoleAssigner{AdminRatio: ratio, Rand: rand.New(rand.NewSource(seed))}
}

func (a *RandomRoleAssigner) Assign() entity.Role {
	a.mu.Lock()
	x := a.Rand.Float64()
	a.mu.Unlock()
	if x < a.AdminRatio {
		return entity.RoleAdmin
	}
	return entity.RoleClient
}

// FixedRoleAssigner always returns its value.
type FixedRoleAssigner entity.Role

func (f FixedRoleAssigner) Assign() entity.Role { return entity.Role(f) }
