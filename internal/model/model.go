package model

import "github.com/google/uuid"

type GroupID string

const EmptyGroupID GroupID = ""

func (id GroupID) BuildUUID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id))
}

// UserRoom is the per-user room name on the event channel.
func UserRoom(userID uuid.UUID) string {
	return "user_" + userID.String()
}
