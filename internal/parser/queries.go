package parser

// queryDef bundles the tree-sitter queries used to extract symbols,
// imports, and call sites for one language. Capture names starting with
// "kind." map directly to a SymbolKind via symbolKindFromCapture; every
// symbol query capture must also bind "name" to the identifier node.
type queryDef struct {
	symbols string
	imports string
	calls   string
}

var queryDefs = map[Language]queryDef{
	LanguageGo: {
		symbols: `
(function_declaration name: (identifier) @name) @kind.function
(method_declaration name: (field_identifier) @name) @kind.method
(type_spec name: (type_identifier) @name type: (struct_type)) @kind.struct
(type_spec name: (type_identifier) @name type: (interface_type)) @kind.interface
(const_spec name: (identifier) @name) @kind.constant
`,
		imports: `(import_spec path: (interpreted_string_literal) @import)`,
		calls:   `(call_expression function: (identifier) @call)`,
	},
	LanguagePython: {
		symbols: `
(function_definition name: (identifier) @name) @kind.function
(class_definition name: (identifier) @name) @kind.struct
`,
		imports: `
(import_statement name: (dotted_name) @import)
(import_from_statement module_name: (dotted_name) @import)
`,
		calls: `(call function: (identifier) @call)`,
	},
	LanguageRust: {
		symbols: `
(function_item name: (identifier) @name) @kind.function
(struct_item name: (type_identifier) @name) @kind.struct
(enum_item name: (type_identifier) @name) @kind.enum
(trait_item name: (type_identifier) @name) @kind.interface
(const_item name: (identifier) @name) @kind.constant
(mod_item name: (identifier) @name) @kind.module
`,
		imports: `(use_declaration argument: (scoped_identifier) @import)`,
		calls:   `(call_expression function: (identifier) @call)`,
	},
	LanguageJavaScript: {
		symbols: `
(function_declaration name: (identifier) @name) @kind.function
(method_definition name: (property_identifier) @name) @kind.method
(class_declaration name: (identifier) @name) @kind.struct
`,
		imports: `(import_statement source: (string) @import)`,
		calls:   `(call_expression function: (identifier) @call)`,
	},
	LanguageTypeScript: {
		symbols: `
(function_declaration name: (identifier) @name) @kind.function
(method_definition name: (property_identifier) @name) @kind.method
(class_declaration name: (type_identifier) @name) @kind.struct
(interface_declaration name: (type_identifier) @name) @kind.interface
`,
		imports: `(import_statement source: (string) @import)`,
		calls:   `(call_expression function: (identifier) @call)`,
	},
}
