package dispatch

import (
	"context"
	stderrors "errors"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/protocol"
	"chat-relay/services"
)

// Bind registers every protocol operation against the services. Business
// failures become ack envelopes on the originating connection; collaborator
// failures degrade inside the services and are only logged here.
func Bind(d *Dispatcher, auth *services.AuthService, chat *services.ChatService, groups *services.GroupService, log *slog.Logger) {
	d.Register(protocol.MsgLogin, func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		result, err := auth.Login(ctx, env.ID, env.Password, conn)
		if err != nil {
			sendAck(conn, loginFailure(err), log)
			return
		}
		sendAck(conn, protocol.LoginAck(result.ID, result.Name, result.Backlog, result.Friends), log)
	})

	d.Register(protocol.MsgRegister, func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		id, err := auth.Register(env.Name, env.Password)
		if err != nil {
			log.Warn("registration failed", "name", env.Name, "error", err)
			sendAck(conn, protocol.RegisterFailAck(), log)
			return
		}
		sendAck(conn, protocol.RegisterAck(id), log)
	})

	d.Register(protocol.MsgLogout, func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		auth.Logout(ctx, env.ID)
	})

	d.Register(protocol.MsgOneChat, func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		if _, err := chat.OneChat(ctx, env.ToID, env.Encode()); err != nil {
			log.Warn("one-to-one delivery failed", "target", env.ToID, "error", err)
		}
	})

	d.Register(protocol.MsgAddFriend, func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		if err := chat.AddFriend(env.ID, env.FriendID); err != nil {
			log.Warn("add friend failed", "user", env.ID, "friend", env.FriendID, "error", err)
		}
	})

	d.Register(protocol.MsgCreateGroup, func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		if _, err := groups.CreateGroup(env.ID, env.GroupName, env.GroupDesc); err != nil {
			log.Warn("create group failed", "creator", env.ID, "error", err)
		}
	})

	d.Register(protocol.MsgAddGroup, func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		if err := groups.JoinGroup(env.ID, env.GroupID); err != nil {
			log.Warn("join group failed", "user", env.ID, "group", env.GroupID, "error", err)
		}
	})

	d.Register(protocol.MsgGroupChat, func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		if err := chat.GroupChat(ctx, env.ID, env.GroupID, env.Encode()); err != nil {
			log.Warn("group fanout failed", "group", env.GroupID, "error", err)
		}
	})
}

func loginFailure(err error) protocol.Envelope {
	if stderrors.Is(err, errors.ErrAlreadyOnline) {
		return protocol.LoginFailAck(protocol.ErrnoAlreadyOnline, errors.ErrAlreadyOnline.Error())
	}
	return protocol.LoginFailAck(protocol.ErrnoAuthFailed, errors.ErrAuthFailed.Error())
}

func sendAck(conn contract.Sender, env protocol.Envelope, log *slog.Logger) {
	if err := conn.Send(env.Encode()); err != nil {
		log.Warn("ack send failed", "msgid", int(env.MsgID), "error", err)
	}
}
