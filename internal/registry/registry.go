// Package registry holds the authoritative in-memory table of meeting
// records. Each meeting is guarded by its own mutex so that mutations
// on one meeting serialize into a total order while different meetings
// proceed fully in parallel.
package registry

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/zoneclock/meeting-sync/internal/models"
)

// Sentinel errors for registry operations; match with errors.Is.
var (
	ErrInvalidID           = errors.New("meeting id is required")
	ErrAlreadyExists       = errors.New("meeting already exists")
	ErrNotFound            = errors.New("meeting not found")
	ErrParticipantNotFound = errors.New("participant not found")
)

// Broadcaster receives the updated record after every successful
// mutation. The call happens while the meeting's lock is still held, so
// signals for one meeting arrive in mutation order. Implementations
// must not call back into the registry for the same meeting.
type Broadcaster interface {
	BroadcastMeeting(meetingID string, record models.MeetingRecord)
}

// entry pairs a stored record with the mutex that serializes its
// read-modify-write-then-broadcast sequences.
type entry struct {
	mu     sync.Mutex
	record models.MeetingRecord
}

// Registry is the process-wide meeting table. Construct it once at
// startup with New and hand it to the hub and the REST handlers; it has
// no package-level instance. Records live until process exit — an empty
// subscription set never deletes a meeting.
type Registry struct {
	mu          sync.RWMutex
	meetings    map[string]*entry
	broadcaster Broadcaster
}

// New creates an empty registry that signals the given broadcaster on
// every successful mutation.
func New(b Broadcaster) *Registry {
	return &Registry{
		meetings:    make(map[string]*entry),
		broadcaster: b,
	}
}

// Create inserts a new meeting record keyed by record.ID, filling in
// default privacy settings when absent. It fails with ErrInvalidID for
// an empty id and ErrAlreadyExists for a duplicate; the stored record
// is left untouched in the duplicate case.
func (r *Registry) Create(record models.MeetingRecord) error {
	if record.ID == "" {
		return ErrInvalidID
	}

	stored := record.Clone()
	if stored.PrivacySettings == nil {
		stored.PrivacySettings = &models.PrivacySettings{}
	}
	if stored.Participants == nil {
		stored.Participants = []models.Participant{}
	}

	e := &entry{record: stored}

	r.mu.Lock()
	if _, exists := r.meetings[record.ID]; exists {
		r.mu.Unlock()
		return errors.Wrapf(ErrAlreadyExists, "meeting %q", record.ID)
	}
	e.mu.Lock()
	r.meetings[record.ID] = e
	r.mu.Unlock()

	r.signal(record.ID, e.record)
	e.mu.Unlock()

	return nil
}

// Get returns a snapshot of the stored record.
func (r *Registry) Get(meetingID string) (models.MeetingRecord, error) {
	e, err := r.lookup(meetingID)
	if err != nil {
		return models.MeetingRecord{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.Clone(), nil
}

// Replace swaps the stored record wholesale, preserving the immutable
// id, and returns a snapshot of the new value. Last write wins between
// concurrent replacers.
func (r *Registry) Replace(meetingID string, record models.MeetingRecord) (models.MeetingRecord, error) {
	e, err := r.lookup(meetingID)
	if err != nil {
		return models.MeetingRecord{}, err
	}

	stored := record.Clone()
	stored.ID = meetingID
	if stored.PrivacySettings == nil {
		stored.PrivacySettings = &models.PrivacySettings{}
	}
	if stored.Participants == nil {
		stored.Participants = []models.Participant{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.record = stored
	r.signal(meetingID, e.record)
	return e.record.Clone(), nil
}

// PatchParticipant sets confirmedAttendance on a single participant,
// leaving every other participant untouched. The meeting and the
// participant fail with distinct not-found errors.
func (r *Registry) PatchParticipant(meetingID, participantID string, confirmed bool) (models.Participant, error) {
	e, err := r.lookup(meetingID)
	if err != nil {
		return models.Participant{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.record.Participants {
		if e.record.Participants[i].ID != participantID {
			continue
		}
		e.record.Participants[i].ConfirmedAttendance = &confirmed
		r.signal(meetingID, e.record)

		updated := e.record.Participants[i]
		flag := *updated.ConfirmedAttendance
		updated.ConfirmedAttendance = &flag
		return updated, nil
	}

	return models.Participant{}, errors.Wrapf(ErrParticipantNotFound, "participant %q in meeting %q", participantID, meetingID)
}

// lookup resolves a meeting entry without touching its lock.
func (r *Registry) lookup(meetingID string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.meetings[meetingID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "meeting %q", meetingID)
	}
	return e, nil
}

// signal hands the updated record to the broadcaster. Called with the
// meeting's lock held so broadcasts preserve mutation order.
func (r *Registry) signal(meetingID string, record models.MeetingRecord) {
	if r.broadcaster == nil {
		return
	}
	r.broadcaster.BroadcastMeeting(meetingID, record.Clone())
}
