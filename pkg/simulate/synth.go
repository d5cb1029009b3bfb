package simulate

import (
	"fmt"

	"github.com/lgreene/tracksim/schemas"
)

// Synthesizer builds one SyntheticEvent per call from the pool, the clock and
// the catalog. It keeps no state between calls.
type Synthesizer struct {
	pool    *UserPool
	clock   *Clock
	catalog Catalog
	rnd     *Rand
}

func NewSynthesizer(pool *UserPool, clock *Clock, catalog Catalog, rnd *Rand) (*Synthesizer, error) {
	if pool == nil || pool.Len() == 0 {
		return nil, errEmpty("user pool")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if rnd == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if err := catalog.validate(); err != nil {
		return nil, err
	}
	return &Synthesizer{pool: pool, clock: clock, catalog: catalog, rnd: rnd}, nil
}

// Next returns a freshly built event.
func (s *Synthesizer) Next() *schemas.SyntheticEvent {
	user := s.pool.Pick(s.rnd)
	at := s.clock.Next(s.rnd)

	page := s.catalog.Pages[s.rnd.Intn(len(s.catalog.Pages))]
	typ := s.catalog.EventTypes[s.rnd.Intn(len(s.catalog.EventTypes))]

	var target string
	if typ == schemas.EventClick {
		target = s.catalog.Targets[s.rnd.Intn(len(s.catalog.Targets))]
	}

	var stay int64
	if typ == schemas.EventView {
		stay = int64(s.rnd.IntRange(schemas.MinStayTimeMs, schemas.MaxStayTimeMs))
	}

	return &schemas.SyntheticEvent{
		Type:            typ,
		Target:          target,
		Page:            page,
		StayTime:        stay,
		Timestamp:       at.UnixMilli(),
		MockIP:          user.IP,
		MockLocation:    user.Location,
		CustomCreatedAt: at.Format(schemas.CreatedAtLayout),
	}
}

func (s *Synthesizer) Pool() *UserPool { return s.pool }
