// Command tool mints access tokens for local testing.
//
//	go run ./cmd/tool -telegram-id 1001
//	go run ./cmd/tool -telegram-id 1001 -n 500 -out tests/tokens.csv
//
// JWT_SECRET and JWT_ISSUER are read from the environment (or .env).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladosShikos/losb-back/internal/infrastructure/security"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tool:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("tool", flag.ContinueOnError)
	telegramID := fs.Int64("telegram-id", 0, "telegram id of the first token")
	n := fs.Int("n", 1, "number of tokens; ids are telegram-id, telegram-id+1, ...")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	out := fs.String("out", "", "write tokens to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if *telegramID <= 0 {
		return fmt.Errorf("-telegram-id must be positive")
	}
	if *n <= 0 {
		return fmt.Errorf("-n must be positive")
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return mint(w, security.NewJWTVerifier(secret, os.Getenv("JWT_ISSUER")), *telegramID, *n, *ttl)
}

func mint(w io.Writer, signer *security.JWTVerifier, first int64, n int, ttl time.Duration) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		tok, err := signer.Sign(first+int64(i), ttl)
		if err != nil {
			return err
		}
		if _, err := bw.WriteString(tok + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
