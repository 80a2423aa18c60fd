package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/m3rciful/consultbot/core/buildinfo"
	corecmd "github.com/m3rciful/consultbot/core/cmd"
	"github.com/m3rciful/consultbot/internal/app"
	"github.com/m3rciful/consultbot/internal/config"
)

func main() {
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *version {
		fmt.Println(buildinfo.String("consultbot"))
		return
	}

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("consultbot: %v", err)
	}
}
