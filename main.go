package main

import "intentbot/internal/app"

func main() {
	app.Main()
}
