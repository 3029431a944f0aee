// Package domain contains core concepts of the chat system.
// This file defines User entities and presence state.
// No runtime, network, or UI logic should be added here.
package domain

type UserID int64

// State is the fleet-wide presence flag persisted in the store.
type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

type User struct {
	ID       UserID
	Name     string
	Password string
	State    State
}

// Friend is the view of a user returned in a login ack:
// identity, display name and live presence state.
type Friend struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	State State  `json:"state"`
}
