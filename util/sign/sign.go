// Command sign answers staff login challenges. Paste the base64
// challenge from the /auth/login page and it prints the signature to
// paste back.
package main

import (
	"bufio"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func loadPrivateKey(filename string) (ed25519.PrivateKey, error) {
	privKeyBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(privKeyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an Ed25519 private key")
	}
	return edPriv, nil
}

func main() {
	keyPath := flag.String("key", "privkey.pem", "Path to the Ed25519 private key")
	flag.Parse()

	privKey, err := loadPrivateKey(*keyPath)
	if err != nil {
		fmt.Println("Error loading private key:", err)
		os.Exit(1)
	}

	promptStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	fmt.Println("Enter challenges one by one. Type 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(promptStyle.Render("Enter challenge (base64): "))

		if !scanner.Scan() {
			break // EOF
		}

		challengeB64 := strings.TrimSpace(scanner.Text())
		if challengeB64 == "" {
			continue
		}
		if challengeB64 == "quit" {
			break
		}

		challenge, err := base64.StdEncoding.DecodeString(challengeB64)
		if err != nil {
			fmt.Println(outputStyle.Render("Error: invalid base64"))
			continue
		}

		signature := ed25519.Sign(privKey, challenge)
		sigB64 := base64.StdEncoding.EncodeToString(signature)

		fmt.Println(outputStyle.Render("Signature: " + sigB64))
	}

	if err := scanner.Err(); err != nil {
		fmt.Println("Error reading input:", err)
	}
}
