// Command token mints a development session token signed with the
// configured RSA private key.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/xenn00/conference-system/config"
	"github.com/xenn00/conference-system/internal/utils"
	"github.com/xenn00/conference-system/state"
)

func main() {
	userID := flag.String("user", "", "User id placed in the token subject")
	username := flag.String("name", "", "Optional display name")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: token -user <user-id> [-name <display-name>] [-ttl 1h]")
		os.Exit(1)
	}

	if err := config.LoadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	secret, err := state.InitSecret(config.Conf.AUTH.PublicKeyPath, config.Conf.AUTH.PrivateKeyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load keys: %v\n", err)
		os.Exit(1)
	}

	claims := utils.NewClaims(*userID, *username, *ttl)
	token, err := utils.GenerateSign(claims, secret.Private)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
