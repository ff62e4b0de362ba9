// Package route maps extracted event categories to notification
// destinations using the tenant's channel routing table.
package route

import "github.com/sfpslog/sfpslog-go/internal/config"

// Channel types.
const (
	ChannelEvents      = "events"
	ChannelConnections = "connections"
)

// categoryChannels is the fixed category -> channel-type table.
var categoryChannels = map[string]string{
	"mission":           ChannelEvents,
	"airdrop":           ChannelEvents,
	"helicrash":         ChannelEvents,
	"trader":            ChannelEvents,
	"vehicle":           ChannelEvents,
	"player_join":       ChannelConnections,
	"player_disconnect": ChannelConnections,
}

// ChannelType returns the channel type an event category routes to.
func ChannelType(category string) (string, bool) {
	ct, ok := categoryChannels[category]
	return ct, ok
}

// Resolve returns the destination id for (server, category) under the
// tenant's channel table. Precedence, first match wins: server-specific
// entry, tenant-wide default, legacy flat entry. A miss is not an error;
// the event is simply not delivered.
func Resolve(channels config.ChannelTable, serverID, category string) (string, bool) {
	channelType, ok := ChannelType(category)
	if !ok {
		return "", false
	}

	if server, ok := channels.Servers[serverID]; ok {
		if dest, ok := server[channelType]; ok && dest != "" {
			return dest, true
		}
	}
	if dest, ok := channels.Defaults[channelType]; ok && dest != "" {
		return dest, true
	}
	if dest, ok := channels.Legacy[channelType]; ok && dest != "" {
		return dest, true
	}
	return "", false
}
