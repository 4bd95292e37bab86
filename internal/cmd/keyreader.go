package cmd

import (
	"bufio"
	"io"

	"github.com/kan-bayashi/svt/internal/input"
)

// startKeyReader decodes raw terminal bytes from r into input.Key values on
// its own goroutine, closing the returned channel on EOF or read error.
func startKeyReader(r io.Reader) <-chan input.Key {
	out := make(chan input.Key, 64)
	go func() {
		defer close(out)
		br := bufio.NewReader(r)
		for {
			ru, _, err := br.ReadRune()
			if err != nil {
				return
			}
			out <- decodeRune(ru)
		}
	}()
	return out
}

func decodeRune(ru rune) input.Key {
	switch ru {
	case '\r', '\n':
		return input.Key{Rune: ru, IsEnter: true}
	case ' ':
		return input.Key{Rune: ru, IsSpace: true}
	case 0x7f, 0x08:
		return input.Key{Rune: ru, IsBackspc: true}
	default:
		return input.Key{Rune: ru}
	}
}
