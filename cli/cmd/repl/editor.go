package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ihontarenko/jmouse-sub007/log"
)

const defaultEditor = "vi"

// editVarsCommand is a [tea.ExecCommand] that opens the session variables
// as YAML in $EDITOR and decodes the result. A document that fails to
// decode offers another edit; declining ends the session.
type editVarsCommand struct {
	ctx     context.Context
	vars    map[string]any
	updated map[string]any
	logger  log.Logger
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func (c *editVarsCommand) SetStdin(r io.Reader)  { c.stdin = r }
func (c *editVarsCommand) SetStdout(w io.Writer) { c.stdout = w }
func (c *editVarsCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run edits until the document decodes or the user gives up. An emptied
// document leaves updated nil and cancels the edit.
func (c *editVarsCommand) Run() error {
	content, err := yaml.MarshalContext(c.ctx, c.vars)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "jmouse-vars-*.yaml")
	if err != nil {
		return err
	}

	path := f.Name()
	f.Close()

	defer os.Remove(path)

	for {
		if err := os.WriteFile(path, content, 0o600); err != nil {
			return err
		}

		if err := c.runEditor(path); err != nil {
			return err
		}

		content, err = os.ReadFile(path)
		if err != nil {
			return err
		}

		if strings.TrimSpace(string(content)) == "" {
			return nil
		}

		var vars map[string]any

		derr := yaml.UnmarshalContext(c.ctx, content, &vars)

		c.logger.TraceContext(c.ctx, "editor decode attempt",
			slog.Int("content_length", len(content)),
			slog.Bool("success", derr == nil))

		if derr == nil {
			if vars == nil {
				vars = map[string]any{}
			}

			c.updated = vars

			return nil
		}

		fmt.Fprintf(c.stderr, "\n%s\n", derr)
		fmt.Fprint(c.stdout, "Re-edit? [Y/n] ")

		scanner := bufio.NewScanner(c.stdin)
		if !scanner.Scan() {
			return ErrEditDeclined
		}

		if answer := strings.ToLower(strings.TrimSpace(scanner.Text())); answer == "n" || answer == "no" {
			return ErrEditDeclined
		}
	}
}

func (c *editVarsCommand) runEditor(path string) error {
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}

	args := strings.Fields(editor)
	if len(args) == 0 {
		args = []string{defaultEditor}
	}

	cmd := exec.CommandContext(c.ctx, args[0], append(args[1:], path)...)
	cmd.Stdin = c.stdin
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr

	return cmd.Run()
}
