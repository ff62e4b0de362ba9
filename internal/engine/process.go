package engine

import (
	"strconv"
	"strings"

	"github.com/sfpslog/sfpslog-go/internal/parser"
	"github.com/sfpslog/sfpslog-go/internal/state"
)

const unknownPlayer = "Unknown Player"

// processSlice runs pattern extraction over one slice of lines. Session
// and lifecycle state is always updated; event records are only produced
// when emit is true (hot start). Emission stops with ErrSafetyBreak once
// the record count exceeds twice the slice length; records produced up to
// that point are still returned.
func (e *Engine) processSlice(key state.TenantServerKey, lines []string, emit bool) ([]EventRecord, error) {
	var records []EventRecord
	limit := 2 * len(lines)

	appendRecord := func(rec EventRecord) bool {
		if !emit {
			return true
		}
		records = append(records, rec)
		if len(records) > limit {
			e.log.Error().
				Str("tenant", key.TenantID).Str("server", key.ServerID).
				Int("events", len(records)).Int("lines", len(lines)).
				Msg("safety break, halting event emission")
			return false
		}
		return true
	}

	for _, line := range lines {
		for _, m := range e.catalog.Match(line) {
			switch m.Name {
			case parser.PatternMissionRespawn:
				seconds, err := strconv.Atoi(m.Groups[1])
				if err != nil {
					e.log.Warn().Err(err).Str("line", line).Msg("malformed respawn line")
					continue
				}
				if !appendRecord(missionEvent(key.TenantID, key.ServerID, m.Groups[0], "RESPAWN", seconds, e.now())) {
					return records, ErrSafetyBreak
				}

			case parser.PatternMissionStateChange:
				if !appendRecord(missionEvent(key.TenantID, key.ServerID, m.Groups[0], m.Groups[1], 0, e.now())) {
					return records, ErrSafetyBreak
				}

			case parser.PatternPlayerQueueJoin:
				// Name is not confirmed as a session yet; cache it for the
				// registration line.
				playerKey := state.TenantPlayerKey{TenantID: key.TenantID, PlayerID: m.Groups[0]}
				e.sessions.CacheQueueName(playerKey, strings.TrimSpace(m.Groups[1]), e.now())

			case parser.PatternPlayerRegistered:
				playerKey := state.TenantPlayerKey{TenantID: key.TenantID, PlayerID: m.Groups[0]}
				name, ok := e.sessions.QueueName(playerKey)
				if !ok {
					name = unknownPlayer
				}
				e.sessions.RecordJoin(playerKey, name, e.now())
				if !appendRecord(playerEvent(CategoryPlayerJoin, key.TenantID, key.ServerID, playerKey.PlayerID, name, e.now())) {
					return records, ErrSafetyBreak
				}

			case parser.PatternPlayerDisconnect:
				playerKey := state.TenantPlayerKey{TenantID: key.TenantID, PlayerID: m.Groups[0]}
				name, ok := e.sessions.SessionName(playerKey)
				if !ok {
					name, ok = e.sessions.QueueName(playerKey)
				}
				if !ok {
					name = unknownPlayer
				}
				e.sessions.RecordLeave(playerKey, e.now())
				if !appendRecord(playerEvent(CategoryPlayerDisconnect, key.TenantID, key.ServerID, playerKey.PlayerID, name, e.now())) {
					return records, ErrSafetyBreak
				}

			case parser.PatternVehicleSpawn, parser.PatternVehicleDelete:
				// Matched but intentionally not emitted.
			}
		}
	}
	return records, nil
}

// splitLines splits raw file content into lines, tolerating CRLF and a
// trailing newline.
func splitLines(content []byte) []string {
	text := strings.TrimRight(string(content), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
