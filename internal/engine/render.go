package engine

// render.go - turning parsed models into executable SQL

import (
	"fmt"
	"strings"

	"github.com/meltworks/stagehand/internal/parser"
)

// RenderError wraps a failure to produce SQL for a model.
type RenderError struct {
	ModelPath string
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s: %v", e.ModelPath, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// renderSQL produces the final SELECT for a model. A model with an empty
// body and a frontmatter source becomes a full passthrough of that
// source. Otherwise every source() and ref() placeholder in the body is
// replaced with the resolved relation name.
func (e *Engine) renderSQL(m *parser.Model) (string, error) {
	if m.SQL == "" {
		rel, err := e.catalog.Resolve(m.Source.Namespace, m.Source.Table)
		if err != nil {
			return "", &RenderError{ModelPath: m.Path, Err: err}
		}
		return fmt.Sprintf("SELECT * FROM %s", rel.Qualified()), nil
	}

	rendered, err := parser.ReplaceSourceRefs(m.SQL, func(namespace, table string) (string, error) {
		rel, err := e.catalog.Resolve(namespace, table)
		if err != nil {
			return "", err
		}
		return rel.Qualified(), nil
	})
	if err != nil {
		return "", &RenderError{ModelPath: m.Path, Err: err}
	}

	rendered, err = parser.ReplaceRefs(rendered, func(ref string) (string, error) {
		target, err := resolveRef(e.models, m.Path, ref)
		if err != nil {
			return "", err
		}
		return e.models[target].Relation(), nil
	})
	if err != nil {
		return "", &RenderError{ModelPath: m.Path, Err: err}
	}

	return strings.TrimSpace(rendered), nil
}
