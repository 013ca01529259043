package cli

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// Prompter asks the user questions
type Prompter interface {
	Input(prompt, defaultValue string) (string, error)
	Password(prompt string) (string, error)
	Confirm(prompt string, defaultYes bool) (bool, error)
	Choose(prompt string, options []string, defaultValue string) (string, error)
}

// Survey prompts on the terminal
type Survey struct{}

// Choose presents a list of options and returns the selected option
func (Survey) Choose(prompt string, options []string, defaultValue string) (string, error) {
	var result string
	q := &survey.Select{
		Message: prompt,
		Options: options,
	}
	if defaultValue != "" {
		q.Default = defaultValue
	}
	return result, survey.AskOne(q, &result)
}

// Input gets a text input from the user with an optional default value
func (Survey) Input(prompt, defaultValue string) (string, error) {
	var result string
	q := &survey.Input{
		Message: prompt,
		Default: defaultValue,
	}
	return result, survey.AskOne(q, &result)
}

// Password reads a secret without echoing it
func (Survey) Password(prompt string) (string, error) {
	var result string
	q := &survey.Password{Message: prompt}
	return result, survey.AskOne(q, &result)
}

// Confirm asks for confirmation
func (Survey) Confirm(prompt string, defaultYes bool) (bool, error) {
	var result bool
	q := &survey.Confirm{Message: prompt, Default: defaultYes}
	return result, survey.AskOne(q, &result)
}

// IsInteractive reports whether stdin and stdout are terminals
func IsInteractive() bool {
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ExpandPath expands the ~ character to the user's home directory
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		u, err := user.Current()
		if err != nil {
			return "", err
		}
		return filepath.Join(u.HomeDir, path[1:]), nil
	}
	return path, nil
}

// AbsPath expands ~ and resolves path to an absolute, cleaned path
func AbsPath(path string) (string, error) {
	expanded, err := ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	target, err := filepath.Abs(filepath.Clean(expanded))
	if err != nil {
		return "", fmt.Errorf("invalid path: %v", err)
	}
	return target, nil
}

// AskInt asks until the answer is a positive integer
func AskInt(p Prompter, prompt string, defaultValue int) (int, error) {
	for {
		answer, err := p.Input(prompt, strconv.Itoa(defaultValue))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err == nil && n > 0 {
			return n, nil
		}
		fmt.Printf("%q is not a positive number\n", answer)
	}
}
