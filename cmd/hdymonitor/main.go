package main

import (
	"hdymonitor/cmd/hdymonitor/commands"
	"hdymonitor/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
