package main

import (
	"os"

	"github.com/memberportal/memberportal/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
