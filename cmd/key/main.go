package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"courier-dispatch/internal/cli"
)

func main() {
	var (
		userID   = flag.String("user-id", "", "UUID of the user (subject)")
		deviceID = flag.String("device-id", "dev-device", "Device identity embedded in the token")
		role     = flag.String("role", "CLIENT", "User role: CLIENT | DRIVER | ADMIN")
		secret   = flag.String("secret", "", "JWT HMAC secret (HS256)")
	)
	flag.Parse()

	if *userID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --user-id=<uuid> --role=CLIENT --secret='<secret>' [--device-id=<id>]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateUserToken(*secret, *userID, *deviceID, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:    %s\n", claims.Subject)
	fmt.Printf("  role:   %s\n", claims.Role)
	fmt.Printf("  device: %s\n", claims.DeviceID)
	fmt.Printf("  iat:    %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:    %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
