// Package protocol defines the typed JSON envelope exchanged with clients
// and forwarded across instances on the bus. The msgid discriminator selects
// which of the optional fields are meaningful.
package protocol

import (
	"encoding/json"

	"chat-relay/domain"
)

type MsgType int

const (
	MsgLogin MsgType = iota + 1
	MsgLoginAck
	MsgLogout
	MsgRegister
	MsgRegisterAck
	MsgOneChat
	MsgAddFriend
	MsgCreateGroup
	MsgAddGroup
	MsgGroupChat
)

// Error codes carried in the errno field of ack envelopes.
const (
	ErrnoOK            = 0
	ErrnoAuthFailed    = 1
	ErrnoAlreadyOnline = 2
	ErrnoRegisterFail  = 1
)

// Envelope is the wire message. A single struct covers every msgid; fields
// not used by a given type stay at their zero value and are omitted on encode.
type Envelope struct {
	MsgID     MsgType        `json:"msgid"`
	ID        domain.UserID  `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Password  string         `json:"password,omitempty"`
	ToID      domain.UserID  `json:"toid,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	FriendID  domain.UserID  `json:"friendid,omitempty"`
	GroupID   domain.GroupID `json:"groupid,omitempty"`
	GroupName string         `json:"groupname,omitempty"`
	GroupDesc string         `json:"groupdesc,omitempty"`

	// Ack-only fields.
	Errno      *int            `json:"errno,omitempty"`
	Errmsg     string          `json:"errmsg,omitempty"`
	OfflineMsg []string        `json:"offlinemsg,omitempty"`
	Friends    []domain.Friend `json:"friends,omitempty"`
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}

// Encode serializes the envelope. Marshal of this struct cannot fail, and
// callers on the hot routing path want the payload without an error branch.
func (e Envelope) Encode() []byte {
	data, _ := json.Marshal(e)
	return data
}

func errnoPtr(code int) *int { return &code }

// LoginAck builds the success response of a login: identity, backlog drained
// from the offline queue and the friend list with live states.
func LoginAck(id domain.UserID, name string, backlog []string, friends []domain.Friend) Envelope {
	return Envelope{
		MsgID:      MsgLoginAck,
		ID:         id,
		Name:       name,
		Errno:      errnoPtr(ErrnoOK),
		OfflineMsg: backlog,
		Friends:    friends,
	}
}

func LoginFailAck(code int, reason string) Envelope {
	return Envelope{MsgID: MsgLoginAck, Errno: errnoPtr(code), Errmsg: reason}
}

func RegisterAck(id domain.UserID) Envelope {
	return Envelope{MsgID: MsgRegisterAck, ID: id, Errno: errnoPtr(ErrnoOK)}
}

func RegisterFailAck() Envelope {
	return Envelope{MsgID: MsgRegisterAck, Errno: errnoPtr(ErrnoRegisterFail)}
}
