package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func TestDecode_OneChat(t *testing.T) {
	req := require.New(t)

	env, err := Decode([]byte(`{"msgid":6,"id":1,"toid":3,"msg":"hello"}`))

	req.NoError(err)
	req.Equal(MsgOneChat, env.MsgID)
	req.Equal(domain.UserID(1), env.ID)
	req.Equal(domain.UserID(3), env.ToID)
	req.Equal("hello", env.Msg)
}

func TestDecode_Rejects_Garbage(t *testing.T) {
	req := require.New(t)

	_, err := Decode([]byte(`{"msgid":`))
	req.Error(err)
}

func TestLoginAck_Shape(t *testing.T) {
	req := require.New(t)

	ack := LoginAck(1, "alice",
		[]string{`{"msgid":6,"msg":"queued"}`},
		[]domain.Friend{{ID: 2, Name: "bob", State: domain.Online}},
	)

	var decoded map[string]any
	req.NoError(json.Unmarshal(ack.Encode(), &decoded))
	req.EqualValues(MsgLoginAck, decoded["msgid"])
	req.EqualValues(0, decoded["errno"])
	req.EqualValues(1, decoded["id"])
	req.Equal("alice", decoded["name"])
	req.Len(decoded["offlinemsg"], 1)
	req.Len(decoded["friends"], 1)
	// Failure-only fields stay absent on success
	req.NotContains(decoded, "errmsg")
}

func TestLoginFailAck_Carries_Errno(t *testing.T) {
	req := require.New(t)

	ack := LoginFailAck(ErrnoAlreadyOnline, "account already logged in")

	var decoded map[string]any
	req.NoError(json.Unmarshal(ack.Encode(), &decoded))
	req.EqualValues(ErrnoAlreadyOnline, decoded["errno"])
	req.Equal("account already logged in", decoded["errmsg"])
	req.NotContains(decoded, "offlinemsg")
}
