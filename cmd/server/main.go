package main

import (
	"github.com/OFFIS-RIT/taxo/internal/server"
	"github.com/OFFIS-RIT/taxo/internal/util"
	"github.com/OFFIS-RIT/taxo/pkg/logger"
	"github.com/OFFIS-RIT/taxo/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
