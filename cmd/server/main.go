package main

import (
	"github.com/subosito/gotenv"
)

func main() {
	// Overlay .env onto the environment before viper reads it. Missing
	// file is fine; config defaults cover everything.
	_ = gotenv.Load()

	Execute()
}
