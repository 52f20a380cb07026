package ws

import (
	"encoding/json"

	"github.com/zoneclock/meeting-sync/internal/models"
)

// Envelope types form a closed set. Anything else decodes to an
// envelope the dispatcher logs and drops.
const (
	typeJoin   = "join"
	typeUpdate = "update"
	typeLeave  = "leave"

	typeMeetingData   = "meeting-data"
	typeMeetingUpdate = "meeting-update"
	typeError         = "error"
)

// inboundEnvelope is one client→server message on the duplex channel.
type inboundEnvelope struct {
	Type      string                `json:"type"`
	MeetingID string                `json:"meetingId"`
	Meeting   *models.MeetingRecord `json:"meeting,omitempty"`
}

// outboundEnvelope is one server→client message on the duplex channel.
type outboundEnvelope struct {
	Type    string                `json:"type"`
	Meeting *models.MeetingRecord `json:"meeting,omitempty"`
	Message string                `json:"message,omitempty"`
}

func marshalMeetingEnvelope(envelopeType string, record models.MeetingRecord) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Type: envelopeType, Meeting: &record})
}

func marshalErrorEnvelope(message string) []byte {
	// An error envelope only carries a string; marshalling cannot fail.
	payload, _ := json.Marshal(outboundEnvelope{Type: typeError, Message: message})
	return payload
}
