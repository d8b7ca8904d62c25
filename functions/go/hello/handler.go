package hello

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/3s-rg-codes/fcstream/pkg/function"
)

// Greeting is prepended to every payload.
const Greeting = "hello world "

const chunkSize = 1024

// Handler answers every invocation with Greeting followed by the request payload.
// It holds no state and is safe for concurrent use.
type Handler struct{}

func New() *Handler {
	return &Handler{}
}

func (h *Handler) Initialize(ctx *function.Context) error {
	ctx.Logger().Debug("Initializing hello function")
	return nil
}

func (h *Handler) HandleRequest(in io.Reader, out io.Writer, ctx *function.Context) error {
	text, err := Convert(in)
	if err != nil {
		return err
	}

	resp := []byte(Greeting + text)
	n, err := out.Write(resp)
	if err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if n != len(resp) {
		return fmt.Errorf("failed to write response: %w", io.ErrShortWrite)
	}

	ctx.Logger().Debug("Handled request", "payload_bytes", len(text), "response_bytes", n)
	return nil
}

// Convert drains in and returns its contents as UTF-8 text. Every byte that is not part of a
// valid UTF-8 sequence becomes U+FFFD.
func Convert(in io.Reader) (string, error) {
	var result bytes.Buffer
	buf := make([]byte, chunkSize)
	for {
		n, err := in.Read(buf)
		result.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read request payload: %w", err)
		}
	}

	text := result.String()
	if utf8.ValidString(text) {
		return text, nil
	}
	return string([]rune(text)), nil
}
