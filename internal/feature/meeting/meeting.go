// Package meeting generates joinable video-meeting links.
package meeting

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	roomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	roomLength   = 10
)

// Generator builds "<base>/<room>" links with random lowercase alphanumeric rooms.
type Generator struct {
	baseURL string
	random  io.Reader
}

// NewGenerator constructs a Generator for baseURL.
func NewGenerator(baseURL string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		random:  rand.Reader,
	}
}

// NewLink returns a fresh meeting link. Uniqueness is not tracked.
func (g *Generator) NewLink() (string, error) {
	if g == nil || g.baseURL == "" {
		return "", errors.New("meeting generator is not initialized")
	}

	room, err := randomRoom(g.random)
	if err != nil {
		return "", err
	}

	return g.baseURL + "/" + room, nil
}

func randomRoom(random io.Reader) (string, error) {
	buf := make([]byte, roomLength)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("generate meeting room: %w", err)
	}

	// 256 is not a multiple of 36, leaving a negligible bias toward early letters.
	for i, b := range buf {
		buf[i] = roomAlphabet[int(b)%len(roomAlphabet)]
	}
	return string(buf), nil
}
