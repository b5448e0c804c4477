package main

import (
	"log"

	"github.com/kataras/iris/v12"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/server"
	applog "github.com/marianaArangoE/ecommerce-tracking-api-sub000/pkg/log"
)

func main() {
	applog.InitLogger()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	app := iris.New()
	server.RegisterAdminRoutes(app, cfg)

	addr := cfg.AdminServer.Addr()
	log.Printf("admin server listening on %s", addr)
	if err := app.Run(iris.Addr(addr)); err != nil {
		log.Fatalf("failed to run admin server: %v", err)
	}
}
