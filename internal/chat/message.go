package chat

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/pelusa-v/chatroom.git/internal/types"
)

// 返回给客户端的错误提示
const (
	ErrMsgLoginFailed  = "登录失败"
	ErrMsgBadFormat    = "数据格式不正确"
	ErrMsgBadLogin     = "登录参数有误"
	ErrMsgOffline      = "对方不在线"
	ErrMsgBadType      = "消息类型有误"
	ErrMsgBadPayload   = "消息格式有误"
	joinMsgTemplate    = "用户 %s 加入聊天室"
	leaveMsgTemplate   = "用户 %s 退出聊天室"
	defaultSendBacklog = 100
)

var ErrManagerStopped = errors.New("chat: manager stopped")

func errorData(msg string) types.Data {
	return types.Data{Type: types.MsgError, Msg: msg}
}

func encode(d types.Data) []byte {
	b, _ := json.Marshal(&d)
	return b
}

type login struct {
	client *Client
	data   types.Data
}

type inbound struct {
	client *Client
	raw    []byte
}
