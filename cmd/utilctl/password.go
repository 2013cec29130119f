package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/odyssey-erp/odyssey-utility/internal/auth"
)

// hashPasswordCommand prints the bcrypt hash for ADMIN_PASSWORD_HASH or the users table.
func hashPasswordCommand(in *bufio.Reader, stdout, stderr io.Writer) int {
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		_, _ = fmt.Fprintf(stderr, "hash-password: read: %v\n", err)
		return 1
	}
	password := strings.TrimRight(line, "\r\n")
	hash, err := auth.HashPassword(password)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "hash-password: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, hash)
	return 0
}
