package parser

import "regexp"

// Timestamp format inside log lines: "[2024.05.01-12.30.45:123]"
const timestampLayout = "2006.01.02-15.04.05"

// Pattern names. The prefix groups a pattern into its category: server
// lifecycle, player connection lifecycle, mission state, vehicle
// lifecycle, timestamp extraction.
const (
	PatternLogRotation      = "log_rotation"
	PatternServerStartup    = "server_startup"
	PatternWorldLoaded      = "world_loaded"
	PatternServerMaxPlayers = "server_max_players"

	PatternPlayerQueueJoin  = "player_queue_join"
	PatternPlayerBeaconJoin = "player_beacon_join"
	PatternPlayerRegistered = "player_registered"
	PatternPlayerDisconnect = "player_disconnect"
	PatternPlayerCleanup    = "player_cleanup"

	PatternMissionRespawn     = "mission_respawn"
	PatternMissionStateChange = "mission_state_change"
	PatternMissionReady       = "mission_ready"
	PatternMissionInitial     = "mission_initial"
	PatternMissionInProgress  = "mission_in_progress"
	PatternMissionCompleted   = "mission_completed"

	PatternVehicleSpawn  = "vehicle_spawn"
	PatternVehicleDelete = "vehicle_delete"

	PatternTimestamp = "timestamp"
)

// Compiled rules, evaluated independently per line (not mutually
// exclusive) with search-anywhere semantics.
var rules = []struct {
	name string
	re   *regexp.Regexp
}{
	// Server lifecycle
	{PatternLogRotation, regexp.MustCompile(`^Log file open, (\d{2}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})`)},
	{PatternServerStartup, regexp.MustCompile(`LogWorld: Bringing World.*up for play.*at (\d{4}\.\d{2}\.\d{2}-\d{2}\.\d{2}\.\d{2})`)},
	{PatternWorldLoaded, regexp.MustCompile(`LogLoad: Took .* seconds to LoadMap.*World_0`)},
	{PatternServerMaxPlayers, regexp.MustCompile(`(?i)playersmaxcount=(\d+)`)},

	// Player connection lifecycle. The queue-join line carries the display
	// name; the registration line only carries the EOS id.
	{PatternPlayerQueueJoin, regexp.MustCompile(`(?i)LogNet: Join request: /Game/Maps/world_\d+/World_\d+\?.*eosid=\|([a-f0-9]+).*Name=([^&\?]+)`)},
	{PatternPlayerBeaconJoin, regexp.MustCompile(`(?i)LogBeacon: Beacon Join SFPSOnlineBeaconClient EOS:\|([a-f0-9]+)`)},
	{PatternPlayerRegistered, regexp.MustCompile(`(?i)LogOnline: Warning: Player \|([a-f0-9]+) successfully registered!`)},
	{PatternPlayerDisconnect, regexp.MustCompile(`(?i)UChannel::Close: Sending CloseBunch.*UniqueId: EOS:\|([a-f0-9]+)`)},
	{PatternPlayerCleanup, regexp.MustCompile(`(?i)UNetConnection::Close: Connection cleanup.*UniqueId: EOS:\|([a-f0-9]+)`)},

	// Mission state
	{PatternMissionRespawn, regexp.MustCompile(`(?i)LogSFPS: Mission (GA_[A-Za-z0-9_]+) will respawn in (\d+)`)},
	{PatternMissionStateChange, regexp.MustCompile(`LogSFPS: Mission (GA_[A-Za-z0-9_]+) switched to ([A-Z_]+)`)},
	{PatternMissionReady, regexp.MustCompile(`LogSFPS: Mission (GA_[A-Za-z0-9_]+) switched to READY`)},
	{PatternMissionInitial, regexp.MustCompile(`LogSFPS: Mission (GA_[A-Za-z0-9_]+) switched to INITIAL`)},
	{PatternMissionInProgress, regexp.MustCompile(`LogSFPS: Mission (GA_[A-Za-z0-9_]+) switched to IN_PROGRESS`)},
	{PatternMissionCompleted, regexp.MustCompile(`LogSFPS: Mission (GA_[A-Za-z0-9_]+) switched to COMPLETED`)},

	// Vehicle lifecycle (matched but not emitted downstream)
	{PatternVehicleSpawn, regexp.MustCompile(`(?i)LogSFPS: \[ASFPSGameMode::NewVehicle_Add\] Add vehicle (BP_SFPSVehicle_[A-Za-z0-9_]+)`)},
	{PatternVehicleDelete, regexp.MustCompile(`(?i)LogSFPS: \[ASFPSGameMode::NewVehicle_Del\] Del vehicle (BP_SFPSVehicle_[A-Za-z0-9_]+)`)},

	// Timestamp extraction
	{PatternTimestamp, timestampPattern},
}

var timestampPattern = regexp.MustCompile(`\[(\d{4}\.\d{2}\.\d{2}-\d{2}\.\d{2}\.\d{2}:\d{3})\]`)
