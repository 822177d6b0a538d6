package controller

import (
	"github.com/sharetube/watchroom/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdMw, c.wsLoggingMw)
	mux.SetErrorHandler(c.handleError)

	wsrouter.Handle(mux, "ping", c.handlePing)

	// room
	wsrouter.Handle(mux, "create-room", c.handleCreateRoom)
	wsrouter.Handle(mux, "join-room", c.handleJoinRoom)
	wsrouter.Handle(mux, "disconnect", c.handleDisconnect)
	wsrouter.Handle(mux, "update-credential", c.handleUpdateCredential)
	wsrouter.Handle(mux, "request-time", c.handleRequestTime)

	// chat
	wsrouter.Handle(mux, "chat-message", c.handleChatMessage)

	// player
	wsrouter.Handle(mux, "play", c.handlePlay)
	wsrouter.Handle(mux, "pause", c.handlePause)
	wsrouter.Handle(mux, "seek", c.handleSeek)
	wsrouter.Handle(mux, "video-change", c.handleVideoChange)
	wsrouter.Handle(mux, "request-sync", c.handleRequestSync)

	// playlist
	wsrouter.Handle(mux, "load-playlist", c.handleLoadPlaylist)
	wsrouter.Handle(mux, "next-video", c.handleNextVideo)
	wsrouter.Handle(mux, "previous-video", c.handlePreviousVideo)

	return mux
}
