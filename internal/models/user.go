package models

import "strconv"

// User is an operator account allowed to drive waits over the API.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don’t expose hash
}

// Actor names who ended a wait. It is stored with abort and cancel events.
type Actor string

// ActorSystem covers aborts nobody asked for, such as a disarmed controller or shutdown.
const ActorSystem Actor = "system"

// UserActor attributes an action to an authenticated operator.
func UserActor(u User) Actor {
	if u.Username != "" {
		return Actor("user:" + u.Username)
	}
	return Actor("user:" + strconv.Itoa(u.ID))
}

// HostActor attributes an action to a host or printer link event.
func HostActor(event string) Actor { return Actor("host:" + event) }

// JobActor attributes an action to a command streamed by a job.
func JobActor(name string) Actor { return Actor("job:" + name) }

func (a Actor) String() string { return string(a) }
