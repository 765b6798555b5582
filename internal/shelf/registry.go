package shelf

import (
	"fmt"
	"log"
	"sync"

	"github.com/shelf-data/shelfview/internal/protocol"
)

// Layout of the physical rig: seven rails on the top row, four on the bottom.
const (
	TopRowRails    = 7
	BottomRowRails = 4
	TotalRails     = TopRowRails + BottomRowRails
)

// Config holds the parallel configuration sequences the registry is built
// from. Index i of every slice describes the same rail. ImagePaths is
// presentation-only and may be shorter than the others.
type Config struct {
	IDs            []string
	MACAddresses   []string
	EmptyDistances []int
	FullDistances  []int
	ItemLengths    []int
	ImagePaths     []string

	// AllowPartial restores the permissive construction behaviour of the
	// original console: mismatched sequence lengths degrade to the shortest
	// common subset and duplicate canonical IDs overwrite earlier entries,
	// both with a logged warning. Off by default; without it either
	// condition is a construction error.
	AllowPartial bool
}

// Snapshot is the read-only view of one rail handed to presentation layers.
type Snapshot struct {
	ESLID     string `json:"esl_id"`
	ItemCount int    `json:"item_count"`
	MaxItems  int    `json:"max_items"`
	Connected bool   `json:"connected"`
	ImagePath string `json:"image_path,omitempty"`
}

// Registry owns the fixed collection of rails keyed by canonical ESL ID.
// Membership never changes after construction; only rail state mutates, and
// only via Dispatch.
type Registry struct {
	mu    sync.Mutex
	rails map[string]*Rail
	order []string
}

// NewRegistry builds the registry from parallel configuration sequences.
// Every ID is canonicalised before use as the map key; an ID that does not
// parse as hex is always a construction error.
func NewRegistry(cfg Config) (*Registry, error) {
	n := len(cfg.IDs)
	if n == 0 {
		return nil, fmt.Errorf("shelf: no rail IDs configured")
	}
	for name, l := range map[string]int{
		"mac_addresses":       len(cfg.MACAddresses),
		"rail_empty_distance": len(cfg.EmptyDistances),
		"rail_full_distance":  len(cfg.FullDistances),
		"item_length":         len(cfg.ItemLengths),
	} {
		if l == n {
			continue
		}
		if !cfg.AllowPartial {
			return nil, fmt.Errorf("shelf: %s has %d entries, expected %d", name, l, n)
		}
		log.Printf("shelf: %s has %d entries, expected %d; building partial registry", name, l, n)
		if l < n {
			n = l
		}
	}
	if n != TotalRails {
		log.Printf("shelf: expected %d rails, got %d", TotalRails, n)
	}

	r := &Registry{rails: make(map[string]*Rail, n)}
	for i := 0; i < n; i++ {
		id, ok := protocol.CanonicalID(cfg.IDs[i])
		if !ok {
			return nil, fmt.Errorf("shelf: rail %d has unparseable ESL ID %q", i, cfg.IDs[i])
		}
		imagePath := ""
		if i < len(cfg.ImagePaths) {
			imagePath = cfg.ImagePaths[i]
		}
		rail, err := NewRail(id, cfg.MACAddresses[i], Calibration{
			EmptyDistance: cfg.EmptyDistances[i],
			FullDistance:  cfg.FullDistances[i],
			ItemLength:    cfg.ItemLengths[i],
		}, imagePath)
		if err != nil {
			return nil, fmt.Errorf("shelf: %w", err)
		}
		if _, exists := r.rails[id]; exists {
			if !cfg.AllowPartial {
				return nil, fmt.Errorf("shelf: duplicate canonical ESL ID %s", id)
			}
			log.Printf("shelf: duplicate canonical ESL ID %s, last entry wins", id)
			r.rails[id] = rail
			continue
		}
		r.rails[id] = rail
		r.order = append(r.order, id)
	}
	return r, nil
}

// Dispatch routes one decoded event to its rail and applies it. It returns
// the rail's new snapshot when a rail was updated. Events for IDs not on the
// shelf are dropped with a log line; Unclassified events never touch a rail.
func (r *Registry) Dispatch(ev protocol.Event) (*Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	switch e := ev.(type) {
	case protocol.Distance:
		id = e.ESLID
	case protocol.Battery:
		id = e.ESLID
	case protocol.Disconnected:
		id = e.ESLID
	case protocol.Unclassified:
		return nil, false
	default:
		return nil, false
	}

	rail, ok := r.rails[id]
	if !ok {
		log.Printf("shelf: ESL ID %s not on the shelf, ignoring", id)
		return nil, false
	}

	switch e := ev.(type) {
	case protocol.Distance:
		rail.ApplyDistance(e.Distance)
	case protocol.Battery:
		rail.ApplyBattery()
	case protocol.Disconnected:
		rail.ApplyDisconnected()
	}

	snap := r.snapshotLocked(rail)
	return &snap, true
}

// Rail returns the rail registered under the given canonical ID. The rail's
// immutable attributes (ID, MAC, command builders) are safe to use from any
// goroutine; state accessors are not.
func (r *Registry) Rail(id string) (*Rail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rail, ok := r.rails[id]
	return rail, ok
}

// Snapshots returns a snapshot of every rail in configuration order.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snaps := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		snaps = append(snaps, r.snapshotLocked(r.rails[id]))
	}
	return snaps
}

// Len returns the number of registered rails.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rails)
}

func (r *Registry) snapshotLocked(rail *Rail) Snapshot {
	return Snapshot{
		ESLID:     rail.ID(),
		ItemCount: rail.ItemCount(),
		MaxItems:  rail.MaxItems(),
		Connected: rail.Connected(),
		ImagePath: rail.ImagePath(),
	}
}
