package main

import (
	"distribution-service/app"
)

func main() {
	app.Run()
}
