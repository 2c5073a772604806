package main

import (
	"github.com/liftlogio/liftlog/config"
	"github.com/liftlogio/liftlog/models"
	"github.com/liftlogio/liftlog/routes"
	"github.com/liftlogio/liftlog/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.WorkoutEntry{}, &models.PersonalRecord{})

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
