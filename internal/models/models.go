package models

// PrivacySettings are display-filtering hints attached to a meeting.
// Both fields default to false; the pair is always replaced as a unit.
type PrivacySettings struct {
	HideParticipantNames     bool `json:"hideParticipantNames"`
	HideParticipantLocations bool `json:"hideParticipantLocations"`
}

// Participant is one attendee entry within a meeting record.
// Location, Timezone and LocalTime are denormalized display strings
// recomputed by whoever materializes the record for a client — the
// registry never touches them.
type Participant struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	LocationID          string `json:"locationId,omitempty"`
	Location            string `json:"location,omitempty"`
	Timezone            string `json:"timezone,omitempty"`
	LocalTime           string `json:"localTime,omitempty"`
	ConfirmedAttendance *bool  `json:"confirmedAttendance,omitempty"`
}

// MeetingRecord is the shared document describing one scheduled
// cross-timezone meeting. ID is immutable once created and keys every
// registry lookup and broadcast. The scheduling fields carry no
// cross-validation; a missing duration does not invalidate the record.
type MeetingRecord struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	ScheduledDate   string           `json:"scheduledDate"`
	ScheduledTime   string           `json:"scheduledTime"`
	DurationMinutes int              `json:"durationMinutes"`
	PrivacySettings *PrivacySettings `json:"privacySettings,omitempty"`
	Participants    []Participant    `json:"participants"`
}

// Clone returns a deep copy of the record so callers can hand out
// snapshots without exposing the stored value to mutation.
func (m MeetingRecord) Clone() MeetingRecord {
	out := m
	if m.PrivacySettings != nil {
		ps := *m.PrivacySettings
		out.PrivacySettings = &ps
	}
	if m.Participants != nil {
		out.Participants = make([]Participant, len(m.Participants))
		for i, p := range m.Participants {
			if p.ConfirmedAttendance != nil {
				confirmed := *p.ConfirmedAttendance
				p.ConfirmedAttendance = &confirmed
			}
			out.Participants[i] = p
		}
	}
	return out
}
