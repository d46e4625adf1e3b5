package spec

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
	"text/template/parse"
)

// ParseTemplate parses a command or log template. Referencing a key that is
// absent from the render data is an execution error rather than "<no value>".
func ParseTemplate(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}
	return t, nil
}

// Render parses and executes text against data in one call.
func Render(name, text string, data map[string]any) (string, error) {
	t, err := ParseTemplate(name, text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}
	return buf.String(), nil
}

// TemplateFields lists the top-level keys a template references through
// {{.key}} or {{index . "key"}}, sorted and de-duplicated. Fields inside
// range and with bodies are relative to a different dot and are skipped.
func TemplateFields(t *template.Template) []string {
	seen := map[string]struct{}{}
	if t.Tree != nil && t.Tree.Root != nil {
		walkList(t.Tree.Root, seen)
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func walkList(list *parse.ListNode, seen map[string]struct{}) {
	if list == nil {
		return
	}
	for _, node := range list.Nodes {
		walkNode(node, seen)
	}
}

func walkNode(node parse.Node, seen map[string]struct{}) {
	switch n := node.(type) {
	case *parse.ActionNode:
		walkPipe(n.Pipe, seen)
	case *parse.IfNode:
		walkPipe(n.Pipe, seen)
		walkList(n.List, seen)
		walkList(n.ElseList, seen)
	case *parse.RangeNode:
		walkPipe(n.Pipe, seen)
		walkList(n.ElseList, seen)
	case *parse.WithNode:
		walkPipe(n.Pipe, seen)
		walkList(n.ElseList, seen)
	case *parse.TemplateNode:
		walkPipe(n.Pipe, seen)
	}
}

func walkPipe(pipe *parse.PipeNode, seen map[string]struct{}) {
	if pipe == nil {
		return
	}
	for _, cmd := range pipe.Cmds {
		walkCommand(cmd, seen)
	}
}

func walkCommand(cmd *parse.CommandNode, seen map[string]struct{}) {
	if len(cmd.Args) >= 3 {
		if ident, ok := cmd.Args[0].(*parse.IdentifierNode); ok && ident.Ident == "index" {
			if _, ok := cmd.Args[1].(*parse.DotNode); ok {
				if key, ok := cmd.Args[2].(*parse.StringNode); ok {
					seen[key.Text] = struct{}{}
				}
			}
		}
	}
	for _, arg := range cmd.Args {
		switch a := arg.(type) {
		case *parse.FieldNode:
			if len(a.Ident) > 0 {
				seen[a.Ident[0]] = struct{}{}
			}
		case *parse.PipeNode:
			walkPipe(a, seen)
		}
	}
}
