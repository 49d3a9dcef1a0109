// Package autoload configures the global logger from LOG_* variables on
// import.
package autoload

import (
	configx "github.com/tanpawarit/microfounder-os/pkg/config"
	logx "github.com/tanpawarit/microfounder-os/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
