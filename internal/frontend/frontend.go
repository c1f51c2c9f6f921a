// Package frontend turns C/C++ source files into tags.Record slices: it
// is the cursor producer a TranslationUnit is built from, playing the
// role libclang's cursor visitor plays in the original implementation,
// but backed by tree-sitter instead of a full Clang parse.
package frontend

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/0x8000-0000/ftagsd/internal/pathtab"
	"github.com/0x8000-0000/ftagsd/internal/strtab"
	"github.com/0x8000-0000/ftagsd/internal/tags"
)

// Frontend wraps a tree-sitter C++ parser (tree-sitter-cpp is a superset
// grammar of C, so one parser instance handles both `.c` and `.cc`/`.cpp`
// inputs) and interns every symbol/namespace/file name it visits
// directly into the tables a tags.ProjectDB owns.
type Frontend struct {
	parser *sitter.Parser

	Symbols    *strtab.Table
	Namespaces *strtab.Table
	FileNames  *pathtab.Table
}

// New creates a Frontend that interns into the given tables — normally
// a tags.ProjectDB's own Symbols/Namespaces/FileNames, so records it
// produces can be added straight into that database without a remap.
func New(symbols, namespaces *strtab.Table, fileNames *pathtab.Table) *Frontend {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return &Frontend{
		parser:     p,
		Symbols:    symbols,
		Namespaces: namespaces,
		FileNames:  fileNames,
	}
}

// Close releases the underlying tree-sitter parser.
func (f *Frontend) Close() {
	if f.parser != nil {
		f.parser.Close()
	}
}

// ParseFile parses source (the content of path) and returns the
// Records found in it, in source order.
func (f *Frontend) ParseFile(ctx context.Context, path string, source []byte) ([]tags.Record, error) {
	tree, err := f.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("frontend: failed to parse %s: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("frontend: parser returned a nil tree for %s", path)
	}

	fileKey, err := f.FileNames.AddKey(path)
	if err != nil {
		return nil, err
	}

	v := &visitor{f: f, source: source, fileKey: fileKey}
	v.walk(tree.RootNode(), "", 0)
	return v.records, nil
}

// visitor walks a tree-sitter AST accumulating Records. namespace tracks
// the enclosing namespace name (joined with "::") and level tracks
// nesting depth for Attributes.Level.
type visitor struct {
	f       *Frontend
	source  []byte
	fileKey pathtab.Key
	records []tags.Record
}

func (v *visitor) text(n *sitter.Node) string {
	return n.Content(v.source)
}

func (v *visitor) location(n *sitter.Node) tags.Location {
	pt := n.StartPoint()
	return tags.NewLocation(v.fileKey, pt.Row+1, pt.Column+1)
}

func (v *visitor) internSymbol(name string) strtab.Key {
	if name == "" {
		return strtab.InvalidKey
	}
	key, err := v.f.Symbols.AddKey(name)
	if err != nil {
		return strtab.InvalidKey
	}
	return key
}

func (v *visitor) internNamespace(name string) strtab.Key {
	if name == "" {
		return strtab.InvalidKey
	}
	key, err := v.f.Namespaces.AddKey(name)
	if err != nil {
		return strtab.InvalidKey
	}
	return key
}

// nameOf finds a node's declarator/name child, unwrapping the common
// C/C++ declarator wrappers (pointer, reference, function) down to the
// identifier tree-sitter-cpp actually names "identifier" or
// "field_identifier".
func nameOf(n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "identifier", "field_identifier", "type_identifier", "namespace_identifier":
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "identifier", "field_identifier", "type_identifier":
			return child
		case "pointer_declarator", "reference_declarator", "function_declarator",
			"array_declarator", "init_declarator", "qualified_identifier":
			if found := nameOf(child); found != nil {
				return found
			}
		}
	}
	return nil
}

func (v *visitor) emit(n *sitter.Node, name string, namespace string, kind tags.SymbolType, level uint8, isDecl, isDef bool) {
	var attrs tags.Attributes
	attrs.SetType(kind)
	attrs.SetDeclaration(isDecl)
	attrs.SetDefinition(isDef)
	attrs.SetLevel(level)
	if level == 0 {
		attrs.SetGlobal(true)
	}

	v.records = append(v.records, tags.Record{
		SymbolNameKey:    v.internSymbol(name),
		NamespaceNameKey: v.internNamespace(namespace),
		Location:         v.location(n),
		Attributes:       attrs,
	})
}

func joinNamespace(outer, inner string) string {
	if outer == "" {
		return inner
	}
	if inner == "" {
		return outer
	}
	return outer + "::" + inner
}

// walk recurses the parse tree, recognizing the declaration shapes
// SPEC_FULL.md's DATA MODEL cares about: namespaces, struct/class/union/
// enum declarations, function declarations and definitions, global
// variables, typedefs, and macro definitions.
func (v *visitor) walk(n *sitter.Node, namespace string, level uint8) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "namespace_definition":
		nameNode := n.ChildByFieldName("name")
		name := ""
		if nameNode != nil {
			name = v.text(nameNode)
		}
		v.emit(n, name, namespace, tags.Namespace, level, true, true)
		inner := joinNamespace(namespace, name)
		for i := 0; i < int(n.ChildCount()); i++ {
			v.walk(n.Child(i), inner, level+1)
		}
		return

	case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
		kind := structuralKind(n.Type())
		nameNode := n.ChildByFieldName("name")
		if nameNode != nil {
			isDef := n.ChildByFieldName("body") != nil
			v.emit(n, v.text(nameNode), namespace, kind, level, !isDef, isDef)
		}

	case "function_definition":
		declarator := n.ChildByFieldName("declarator")
		if nameNode := nameOf(declarator); nameNode != nil {
			v.emit(n, v.text(nameNode), namespace, tags.FunctionDeclaration, level, false, true)
		}

	case "declaration":
		// A bare declaration whose declarator is a function_declarator is
		// a function prototype; anything else at namespace scope is a
		// (possibly extern) variable declaration.
		declarator := n.ChildByFieldName("declarator")
		if nameNode := nameOf(declarator); nameNode != nil {
			if containsType(declarator, "function_declarator") {
				v.emit(n, v.text(nameNode), namespace, tags.FunctionDeclaration, level, true, false)
			} else {
				v.emit(n, v.text(nameNode), namespace, tags.VariableDeclaration, level, true, false)
			}
		}

	case "type_definition":
		declarator := n.ChildByFieldName("declarator")
		if nameNode := nameOf(declarator); nameNode != nil {
			v.emit(n, v.text(nameNode), namespace, tags.TypedefDeclaration, level, true, true)
		}

	case "preproc_def":
		nameNode := n.ChildByFieldName("name")
		if nameNode != nil {
			v.emit(n, v.text(nameNode), namespace, tags.MacroDefinition, level, true, true)
		}

	case "preproc_function_def":
		nameNode := n.ChildByFieldName("name")
		if nameNode != nil {
			v.emit(n, v.text(nameNode), namespace, tags.MacroDefinition, level, true, true)
		}

	case "field_declaration":
		declarator := n.ChildByFieldName("declarator")
		if nameNode := nameOf(declarator); nameNode != nil {
			v.emit(n, v.text(nameNode), namespace, tags.FieldDeclaration, level, true, false)
			last := &v.records[len(v.records)-1].Attributes
			last.SetMember(true)
			last.SetGlobal(false)
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		v.walk(n.Child(i), namespace, level)
	}
}

func structuralKind(nodeType string) tags.SymbolType {
	switch nodeType {
	case "struct_specifier":
		return tags.StructDeclaration
	case "class_specifier":
		return tags.ClassDeclaration
	case "union_specifier":
		return tags.UnionDeclaration
	case "enum_specifier":
		return tags.EnumerationDeclaration
	default:
		return tags.Undefined
	}
}

func containsType(n *sitter.Node, nodeType string) bool {
	if n == nil {
		return false
	}
	if n.Type() == nodeType {
		return true
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if containsType(n.Child(i), nodeType) {
			return true
		}
	}
	return false
}
