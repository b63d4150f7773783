package main

import (
	"distribution-service/app"
)

// worker 进程只消费流水线事件（转码与发布），不提供 HTTP 接口
func main() {
	app.RunWithMode(app.ModeWorker)
}
