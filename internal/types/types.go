package types

import "github.com/pelusa-v/chatroom.git/internal/utils"

// MsgTimeLayout 消息展示时间格式
const MsgTimeLayout = "MM月DD日 HH:mm:ss"

type User struct {
	Id   string `json:"id"`
	Name string `json:"name"` // 展示名，同时作为私聊会话 key
}

type MsgType string

const (
	MsgLogin   MsgType = "login"
	MsgLogout  MsgType = "logout"
	MsgSystem  MsgType = "system"
	MsgPublic  MsgType = "public"
	MsgPrivate MsgType = "private"
	MsgError   MsgType = "error"
)

// Data 服务端推送的消息
type Data struct {
	Type   MsgType `json:"type"`
	Msg    string  `json:"msg"`
	Target *User   `json:"target"`         // public 为发信者；private 进来是目标，出去是发信者
	List   []User  `json:"list,omitempty"` // 仅 login/logout 携带在线用户列表
}

func CreateData(t MsgType, msg string, target User) Data {
	return Data{Type: t, Msg: msg, Target: &target}
}

// SendMsg 客户端发出的消息，不带时间
type SendMsg struct {
	Type   MsgType `json:"type"` // public | private
	Target User    `json:"target"`
	Msg    string  `json:"msg"`
}

func NewPublicMsg(self User, msg string) SendMsg {
	return SendMsg{Type: MsgPublic, Target: self, Msg: msg}
}

func NewPrivateMsg(to User, msg string) SendMsg {
	return SendMsg{Type: MsgPrivate, Target: to, Msg: msg}
}

type Position string

const (
	PositionLeft   Position = "left"   // 收到的
	PositionCenter Position = "center" // 系统通知
	PositionRight  Position = "right"  // 自己发的
)

// MsgCache 已格式化好、可直接展示的消息
type MsgCache struct {
	Position Position `json:"position"`
	Target   User     `json:"target"`
	Msg      string   `json:"msg"`
	Time     string   `json:"time"`
}

// CreateMsgCache 创建时打上当前时间，之后不再变化
func CreateMsgCache(position Position, target User, msg string) MsgCache {
	return MsgCache{
		Position: position,
		Target:   target,
		Msg:      msg,
		Time:     utils.MomentNow(MsgTimeLayout),
	}
}
