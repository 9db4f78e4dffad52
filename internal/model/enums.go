package model

// RoomKind identifies which automaton governs a room.
type RoomKind string

const (
	KindOne2One RoomKind = "one2one"
	KindGroup   RoomKind = "group"
	KindLobby   RoomKind = "lobby"
	KindWaiting RoomKind = "waiting"
)

// RoomStatus is the persisted lifecycle state of a room, distinct from
// live occupancy.
type RoomStatus string

const (
	StatusAvailable RoomStatus = "available"
	StatusChatting  RoomStatus = "chatting"
	StatusAbandoned RoomStatus = "abandoned"
	StatusToDestroy RoomStatus = "toDestroy"
	StatusDestroyed RoomStatus = "destroyed"

	// one2one only
	StatusAvailableForInvitation RoomStatus = "availableForInvitation"
	StatusStaffWaiting           RoomStatus = "staffWaiting"
	StatusStaffWaitingForInvitee RoomStatus = "staffWaitingForInvitee"
	StatusClosingChat            RoomStatus = "closingChat"
	StatusLost                   RoomStatus = "lost"

	// lobby only
	StatusActive RoomStatus = "active"

	// waiting only
	StatusInUse RoomStatus = "inUse"
)

// StatusesFor returns the legal status set for a room kind.
func StatusesFor(kind RoomKind) []RoomStatus {
	switch kind {
	case KindOne2One:
		return []RoomStatus{
			StatusAvailable, StatusAvailableForInvitation,
			StatusStaffWaiting, StatusStaffWaitingForInvitee,
			StatusChatting, StatusClosingChat,
			StatusLost, StatusAbandoned,
			StatusToDestroy, StatusDestroyed,
		}
	case KindGroup:
		return []RoomStatus{
			StatusAvailable, StatusChatting, StatusAbandoned,
			StatusToDestroy, StatusDestroyed,
		}
	case KindLobby:
		return []RoomStatus{
			StatusAvailable, StatusActive, StatusToDestroy, StatusDestroyed,
		}
	case KindWaiting:
		return []RoomStatus{
			StatusAvailable, StatusInUse, StatusAbandoned,
			StatusToDestroy, StatusDestroyed,
		}
	}
	return nil
}

// Role distinguishes the two participant populations.
type Role string

const (
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// SurveyPosition tags which questionnaire a correlated request carries.
type SurveyPosition string

const (
	SurveyStaffAfter   SurveyPosition = "staff-after"
	SurveyClientAfter  SurveyPosition = "client-after"
	SurveyClientIntake SurveyPosition = "client-intake"
)
