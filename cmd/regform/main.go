// Command regform serves the user registration form and its JSON API.
package main

import (
	"github.com/patric-chuzhbe/regform/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		panic(err)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		panic(err)
	}
}
