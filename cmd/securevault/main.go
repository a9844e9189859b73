// Command securevault runs the password vault web service.
package main

import (
	"fmt"

	"github.com/patric-chuzhbe/securevault/internal/app"
	"github.com/patric-chuzhbe/securevault/internal/logger"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

func main() {
	fmt.Printf("Build version: %s\nBuild date: %s\nBuild commit: %s\n", buildVersion, buildDate, buildCommit)

	theApp, err := app.New()
	if err != nil {
		panic(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		logger.Log.Errorln("Error calling the `theApp.Run()`: ", err)
	}
}
