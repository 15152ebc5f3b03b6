package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"happyd/internal/auth"
	"happyd/internal/config"
	"happyd/internal/secrets"
	"happyd/internal/server"
	"happyd/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)

	jwtSecret, err := secrets.JWTSecret(cfg.DataDir)
	if err != nil {
		log.Fatalf("jwt secret: %v", err)
	}
	vapid, err := secrets.GetOrCreateVAPIDKeys(cfg.DataDir)
	if err != nil {
		log.Fatalf("vapid keys: %v", err)
	}
	ownerID, err := secrets.NewOwnerID(cfg.DataDir).Get()
	if err != nil {
		log.Fatalf("owner id: %v", err)
	}
	log.Printf("owner %d, vapid public key %s", ownerID, vapid.PublicKey)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	tokenCfg := auth.TokenConfig{
		Secret: jwtSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "happyd",
	}

	router := server.NewRouter(server.Deps{Store: st, TokenConfig: tokenCfg})
	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}
