// Package prompt asks the operator for choices and credentials.
//
// On a terminal it uses interactive menus with a masked password field.
// Otherwise it reads plain lines, which keeps piped input and tests working.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/artpar/composeshift/internal/shell/cluster"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

var (
	// ErrNoOptions is returned when there is nothing to choose from.
	ErrNoOptions = errors.New("no options to choose from")

	// ErrInvalidChoice is returned when the answer matches no option.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrEmptyAnswer is returned when a required answer is blank.
	ErrEmptyAnswer = errors.New("answer is required")
)

// Terminal prompts on an input and output stream.
type Terminal struct {
	reader      *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewTerminal reads answers from stdin and writes prompts to out, normally
// stderr so that stdout only carries command output. Interactive menus are
// used only when stdin is a terminal.
func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stderr
	}
	return &Terminal{
		reader:      bufio.NewReader(os.Stdin),
		out:         out,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// NewLineTerminal prompts with plain lines on in and out.
func NewLineTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// SelectOne asks for one of options. A single option is returned without asking.
// Line mode accepts the option's number or its exact text.
func (t *Terminal) SelectOne(ctx context.Context, label string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch len(options) {
	case 0:
		return "", ErrNoOptions
	case 1:
		return options[0], nil
	}

	if t.interactive {
		sel := promptui.Select{Label: label, Items: options, Stdout: nopCloser{t.out}}
		_, choice, err := sel.Run()
		return choice, err
	}

	fmt.Fprintf(t.out, "%s:\n", label)
	for i, opt := range options {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, opt)
	}
	answer, err := t.ask("Choice")
	if err != nil {
		return "", err
	}

	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(options) {
			return "", fmt.Errorf("%w: %d", ErrInvalidChoice, n)
		}
		return options[n-1], nil
	}
	for _, opt := range options {
		if opt == answer {
			return opt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChoice, answer)
}

// Credentials asks for the cluster login. The server is asked for only when
// none is configured.
func (t *Terminal) Credentials(ctx context.Context, server string) (cluster.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return cluster.Credentials{}, err
	}

	creds := cluster.Credentials{Server: server}
	var err error

	if creds.Server == "" {
		if creds.Server, err = t.required("Server", 0); err != nil {
			return cluster.Credentials{}, err
		}
	}
	if creds.Username, err = t.required("Username", 0); err != nil {
		return cluster.Credentials{}, err
	}
	if creds.Password, err = t.required("Password", '*'); err != nil {
		return cluster.Credentials{}, err
	}
	return creds, nil
}

func (t *Terminal) required(label string, mask rune) (string, error) {
	if t.interactive {
		p := promptui.Prompt{
			Label:  label,
			Mask:   mask,
			Stdout: nopCloser{t.out},
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return ErrEmptyAnswer
				}
				return nil
			},
		}
		return p.Run()
	}

	answer, err := t.ask(label)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), ErrEmptyAnswer)
	}
	return answer, nil
}

func (t *Terminal) ask(label string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", label)
	line, err := t.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// nopCloser keeps menus from closing the shared output stream.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
