// Package prompt gates destructive pipeline steps behind interactive
// confirmation.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// IsInteractive reports whether stdin is a terminal. Without one the
// pipeline cannot ask, so it refuses to continue unless --yes was given.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Prompter asks questions over a single buffered reader. One Prompter per
// session: a fresh bufio.Reader per question could read ahead and swallow
// the answer to the next one on piped input.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question and reports whether the user accepted.
// The default answer is no.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)

	answer, err := p.readLine()
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ConfirmTyped requires the user to type an exact token to proceed. Used
// for the warnings where a stray "y" should not be enough.
func (p *Prompter) ConfirmTyped(question, token string) (bool, error) {
	fmt.Fprintf(p.out, "%s Type '%s' to proceed: ", question, token)

	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	return answer == token, nil
}

// ReadSecret reads a password from the terminal without echoing it.
func ReadSecret(label string) (string, error) {
	fmt.Printf("Enter the %s: ", label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return string(secret), nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
