package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ChatGroup is a set of users that exchange chat messages.
type ChatGroup struct {
	ID        uuid.UUID   `json:"chatGroupId"`
	Name      string      `json:"name"`
	Members   []uuid.UUID `json:"userIds"`
	CreatedAt time.Time   `json:"createdAt"`
}

// HasMember reports whether userID belongs to the group.
func (g ChatGroup) HasMember(userID uuid.UUID) bool {
	return slices.Contains(g.Members, userID)
}

// Message is a single chat message posted to a group.
type Message struct {
	ID        uuid.UUID `json:"messageId"`
	GroupID   uuid.UUID `json:"chatGroupId"`
	SenderID  uuid.UUID `json:"senderId"`
	Contents  string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
