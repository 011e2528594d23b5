package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	config "github.com/maheshrc27/reelpilot/configs"
	"github.com/maheshrc27/reelpilot/pkg/utils"
)

func main() {
	operator := flag.String("operator", "", "name recorded in the token (required)")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	newSecret := flag.Bool("new-secret", false, "print a fresh SECRET_KEY and exit")
	flag.Parse()

	if *newSecret {
		key, err := utils.GenerateSecretKey()
		if err != nil {
			die("generate secret: %v", err)
		}
		fmt.Println(key)
		return
	}

	_ = godotenv.Load()
	cfg := config.LoadConfig()

	if strings.TrimSpace(*operator) == "" {
		die("--operator is required")
	}
	if cfg.SecretKey == "" {
		die("SECRET_KEY is not set")
	}

	token, err := utils.GenerateToken(cfg.SecretKey, *operator, *ttl)
	if err != nil {
		die("sign token: %v", err)
	}
	fmt.Println(token)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
