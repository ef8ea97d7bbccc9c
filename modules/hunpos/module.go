// Package hunpos adapts the external hunpos-tag process as a
// part-of-speech annotator. It competes with the built-in tagger for the
// pos.tag output and wins when a model is configured, by rule order.
package hunpos

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/registry"
	"github.com/vk/annogrid/internal/store"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnTag is the handler for the 'pos' rule. It streams the document's
// tokens through the hunpos-tag process, one token per line with a blank
// line terminating the sequence, and reads one "token<TAB>tag" line back
// per token.
func OnTag(ctx context.Context, task *registry.Task) error {
	logger := ctxlog.FromContext(ctx)

	model := task.OptionString("model", "")
	if model == "" {
		return fmt.Errorf("hunpos: no model configured (set hunpos.model)")
	}
	binary := task.OptionString("binary", "hunpos-tag")

	words, err := task.ReadLines(task.Inputs[0])
	if err != nil {
		return err
	}

	var stdin bytes.Buffer
	for _, word := range words {
		stdin.WriteString(word)
		stdin.WriteByte('\n')
	}
	stdin.WriteByte('\n')

	cmd := exec.CommandContext(ctx, binary, model)
	cmd.Stdin = &stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running external tagger.", "binary", binary, "model", model, "tokens", len(words))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hunpos: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	tags, err := parseOutput(stdout.String())
	if err != nil {
		return err
	}
	if len(tags) != len(words) {
		return fmt.Errorf("hunpos: tagged %d tokens, expected %d", len(tags), len(words))
	}
	return task.WriteLines("pos.tag", store.ShapePerToken, tags)
}

// parseOutput extracts the tag column from hunpos output, skipping the
// blank separator lines.
func parseOutput(out string) ([]string, error) {
	var tags []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("hunpos: malformed output line %q", line)
		}
		tags = append(tags, fields[1])
	}
	return tags, nil
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("hunpos.pos", OnTag)
}
