package job

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCapacity bounds the table when no capacity is configured.
const DefaultCapacity = 16

var (
	// ErrNotFound reports a lookup that matched no live job.
	ErrNotFound = errors.New("no such job")
	// ErrBadRef reports a job reference that is neither %jid nor a pid.
	ErrBadRef = errors.New("argument must be a %jobid or pid")
)

// Table is a fixed-capacity registry of live jobs keyed by process group id.
// Lookups are linear scans over the bounded slot array; capacity is small
// enough that an index would cost more than it saves.
//
// Table performs no locking. The shell serializes every access, including
// the signal relay's, behind a single mutex.
type Table struct {
	slots  []Job
	nextID int
	logger zerolog.Logger
}

// NewTable returns an empty table with the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func NewTable(capacity int, logger zerolog.Logger) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		slots:  make([]Job, capacity),
		nextID: 1,
		logger: logger.With().Str("component", "jobtable").Logger(),
	}
}

// Capacity returns the fixed slot count.
func (t *Table) Capacity() int { return len(t.slots) }

// Len returns the number of live jobs.
func (t *Table) Len() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].PGID != 0 {
			n++
		}
	}
	return n
}

// Full reports whether Add would be refused.
func (t *Table) Full() bool { return t.Len() == len(t.slots) }

// Add registers a new job and assigns it the next job id. Adding a pgid
// that is already tracked is idempotent and returns the existing entry.
// When the table is full the job is refused: the caller keeps the pgid and
// must not leak the process.
func (t *Table) Add(pgid int, state State, cmdline string) (Job, bool) {
	if pgid < 1 {
		return Job{}, false
	}
	if existing := t.Get(pgid); existing != nil {
		return *existing, true
	}
	for i := range t.slots {
		if t.slots[i].PGID != 0 {
			continue
		}
		t.slots[i] = Job{
			PGID:    pgid,
			ID:      t.nextID,
			State:   state,
			Cmdline: cmdline,
			UID:     uuid.New(),
		}
		t.nextID++
		if t.nextID > len(t.slots) {
			t.nextID = 1
		}
		t.logger.Debug().
			Int("jid", t.slots[i].ID).
			Int("pgid", pgid).
			Str("uid", t.slots[i].UID.String()).
			Str("cmdline", cmdline).
			Msg("job added")
		return t.slots[i], true
	}
	t.logger.Warn().
		Int("pgid", pgid).
		Int("capacity", len(t.slots)).
		Msg("job table full, refusing job")
	return Job{}, false
}

// Remove deletes the job for pgid and recomputes the next job id as
// max(live ids)+1 so freed ids are reused without gaps. Unknown pgids are
// a no-op reported as false.
func (t *Table) Remove(pgid int) bool {
	if pgid < 1 {
		return false
	}
	for i := range t.slots {
		if t.slots[i].PGID != pgid {
			continue
		}
		removed := t.slots[i]
		t.slots[i] = Job{}
		t.nextID = t.maxLiveID() + 1
		t.logger.Debug().
			Int("jid", removed.ID).
			Int("pgid", pgid).
			Str("uid", removed.UID.String()).
			Msg("job removed")
		return true
	}
	return false
}

// Get returns the live job for pgid, or nil.
func (t *Table) Get(pgid int) *Job {
	if pgid < 1 {
		return nil
	}
	for i := range t.slots {
		if t.slots[i].PGID == pgid {
			return &t.slots[i]
		}
	}
	return nil
}

// GetByID returns the live job with the given job id, or nil.
func (t *Table) GetByID(id int) *Job {
	if id < 1 {
		return nil
	}
	for i := range t.slots {
		if t.slots[i].PGID != 0 && t.slots[i].ID == id {
			return &t.slots[i]
		}
	}
	return nil
}

// SetState updates the state of the job for pgid. Unknown pgids are a
// no-op reported as false.
func (t *Table) SetState(pgid int, state State) bool {
	j := t.Get(pgid)
	if j == nil {
		return false
	}
	j.State = state
	return true
}

// ForegroundPGID returns the pgid of the single Foreground job, if any.
func (t *Table) ForegroundPGID() (int, bool) {
	for i := range t.slots {
		if t.slots[i].PGID != 0 && t.slots[i].State == Foreground {
			return t.slots[i].PGID, true
		}
	}
	return 0, false
}

// Jobs returns the live jobs in slot order. The returned slice is a copy.
func (t *Table) Jobs() []Job {
	out := make([]Job, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].PGID != 0 {
			out = append(out, t.slots[i])
		}
	}
	return out
}

// Resolve looks up a job from a user-supplied reference: %N for a job id
// or a bare pid.
func (t *Table) Resolve(ref string) (*Job, error) {
	if ref == "" {
		return nil, ErrBadRef
	}
	if strings.HasPrefix(ref, "%") {
		id, err := strconv.Atoi(ref[1:])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", ref, ErrBadRef)
		}
		if j := t.GetByID(id); j != nil {
			return j, nil
		}
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	pid, err := strconv.Atoi(ref)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", ref, ErrBadRef)
	}
	if j := t.Get(pid); j != nil {
		return j, nil
	}
	return nil, fmt.Errorf("(%d): %w", pid, ErrNotFound)
}

func (t *Table) maxLiveID() int {
	max := 0
	for i := range t.slots {
		if t.slots[i].PGID != 0 && t.slots[i].ID > max {
			max = t.slots[i].ID
		}
	}
	return max
}
