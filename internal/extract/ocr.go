package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OCR recognises text in an encoded image.
type OCR interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// Tesseract shells out to the tesseract binary.
type Tesseract struct {
	Binary string
	Lang   string
}

func NewTesseract() *Tesseract {
	return &Tesseract{Binary: "tesseract", Lang: "eng"}
}

// Check verifies tesseract is installed and runnable.
func (t *Tesseract) Check(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, t.Binary, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tesseract not found or not executable: %w\nOutput: %s", err, string(out))
	}
	return strings.Split(string(out), "\n")[0], nil
}

func (t *Tesseract) Recognize(ctx context.Context, img []byte) (string, error) {
	cmd := exec.CommandContext(ctx, t.Binary, "stdin", "stdout", "-l", t.Lang)
	cmd.Stdin = bytes.NewReader(img)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract error: %w, output: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}
