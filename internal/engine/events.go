package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sfpslog/sfpslog-go/internal/parser"
)

// Event categories. The category decides which channel type the router
// targets.
const (
	CategoryMission          = "mission"
	CategoryPlayerJoin       = "player_join"
	CategoryPlayerDisconnect = "player_disconnect"
)

// Embed colors per mission state / connection event.
const (
	colorReady      = 0x00FF00
	colorInProgress = 0xFFAA00
	colorCompleted  = 0x0099FF
	colorNeutral    = 0x888888
	colorUnknown    = 0x666666
	colorJoin       = 0x00FF00
	colorLeave      = 0xFF0000
)

// EventRecord is one structured, presentation-ready occurrence extracted
// from a log slice. It is the unit handed to routing and the notifier.
type EventRecord struct {
	ID       string
	Category string
	TenantID string
	ServerID string

	Title   string
	Message string
	Color   int

	MissionID      string
	MissionName    string
	MissionLevel   int
	MissionState   string
	RespawnSeconds int

	PlayerID   string
	PlayerName string

	OccurredAt time.Time
}

// Notification pairs a record with its resolved destination.
type Notification struct {
	Record      EventRecord
	Destination string
}

// missionEvent renders a mission state transition or respawn
// announcement. Title and color are deterministic per state.
func missionEvent(tenantID, serverID, missionID, missionState string, respawnSeconds int, at time.Time) EventRecord {
	rec := EventRecord{
		ID:             uuid.NewString(),
		Category:       CategoryMission,
		TenantID:       tenantID,
		ServerID:       serverID,
		MissionID:      missionID,
		MissionName:    parser.NormalizeMissionName(missionID),
		MissionLevel:   parser.MissionLevel(missionID),
		MissionState:   missionState,
		RespawnSeconds: respawnSeconds,
		OccurredAt:     at,
	}

	switch missionState {
	case "READY":
		rec.Title = "Mission Available"
		rec.Message = fmt.Sprintf("%s is now available for completion", rec.MissionName)
		rec.Color = colorReady
	case "IN_PROGRESS":
		rec.Title = "Mission In Progress"
		rec.Message = fmt.Sprintf("%s is currently being completed", rec.MissionName)
		rec.Color = colorInProgress
	case "COMPLETED":
		rec.Title = "Mission Completed"
		rec.Message = fmt.Sprintf("%s has been completed successfully", rec.MissionName)
		rec.Color = colorCompleted
	case "RESPAWN":
		rec.Title = "Mission Respawning"
		rec.Message = fmt.Sprintf("%s will respawn in %d seconds", rec.MissionName, respawnSeconds)
		rec.Color = colorNeutral
	default:
		rec.Title = "Mission Update"
		rec.Message = fmt.Sprintf("%s state: %s", rec.MissionName, missionState)
		rec.Color = colorUnknown
	}
	return rec
}

// playerEvent renders a join or disconnect announcement.
func playerEvent(category, tenantID, serverID, playerID, playerName string, at time.Time) EventRecord {
	rec := EventRecord{
		ID:         uuid.NewString(),
		Category:   category,
		TenantID:   tenantID,
		ServerID:   serverID,
		PlayerID:   playerID,
		PlayerName: playerName,
		OccurredAt: at,
	}
	if category == CategoryPlayerJoin {
		rec.Title = "Player Connected"
		rec.Message = fmt.Sprintf("%s has joined the server", playerName)
		rec.Color = colorJoin
	} else {
		rec.Title = "Player Disconnected"
		rec.Message = fmt.Sprintf("%s has left the server", playerName)
		rec.Color = colorLeave
	}
	return rec
}
