package domain

import "strings"

const (
	teamRoomPrefix         = "team:"
	organizationRoomPrefix = "org:"
)

// RoomKind tells team rooms from organization rooms.
type RoomKind int

const (
	RoomUnknown RoomKind = iota
	RoomTeam
	RoomOrganization
)

// TeamRoom returns the room name for a team, or "" when teamID is empty.
func TeamRoom(teamID string) string {
	if teamID == "" {
		return ""
	}
	return teamRoomPrefix + teamID
}

// OrganizationRoom returns the room name for an organization, or "" when orgID is empty.
func OrganizationRoom(orgID string) string {
	if orgID == "" {
		return ""
	}
	return organizationRoomPrefix + orgID
}

// ParseRoom splits a room name into its kind and id.
func ParseRoom(room string) (RoomKind, string) {
	switch {
	case strings.HasPrefix(room, teamRoomPrefix) && len(room) > len(teamRoomPrefix):
		return RoomTeam, room[len(teamRoomPrefix):]
	case strings.HasPrefix(room, organizationRoomPrefix) && len(room) > len(organizationRoomPrefix):
		return RoomOrganization, room[len(organizationRoomPrefix):]
	default:
		return RoomUnknown, ""
	}
}

// RoomPrefixes are the topic prefixes every instance subscribes to on the shared bus.
func RoomPrefixes() []string {
	return []string{teamRoomPrefix, organizationRoomPrefix}
}
