// Command tokenhash prints the bcrypt hash to put in API_TOKEN_HASH.
//
//	go run ./cmd/tokenhash <token>
package main

import (
	"fmt"
	"os"

	"github.com/baharkarakas/iou-backend/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: tokenhash <token>")
		os.Exit(2)
	}
	hash, err := auth.HashToken(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
