package handler

import (
	"parley/internal/app/chat"
	"parley/internal/configs"
)

// AppDeps bundles the dependencies the handlers need.
type AppDeps struct {
	Router *chat.Router
	Config *configs.AppConfig
}
