package tags

// SymbolType classifies a Record the same way libclang's CXCursorKind
// does; the numeric values are carried over unchanged so a frontend can
// assign them directly from a Clang-style cursor kind.
type SymbolType uint16

const (
	Undefined SymbolType = 0

	StructDeclaration              SymbolType = 2
	UnionDeclaration                SymbolType = 3
	ClassDeclaration                SymbolType = 4
	EnumerationDeclaration          SymbolType = 5
	FieldDeclaration                SymbolType = 6
	EnumerationConstantDeclaration  SymbolType = 7
	FunctionDeclaration             SymbolType = 8
	VariableDeclaration             SymbolType = 9
	ParameterDeclaration            SymbolType = 10

	TypedefDeclaration SymbolType = 20
	MethodDeclaration  SymbolType = 21
	Namespace          SymbolType = 22

	Constructor        SymbolType = 24
	Destructor         SymbolType = 25
	ConversionFunction SymbolType = 26

	TemplateTypeParameter              SymbolType = 27
	NonTypeTemplateParameter           SymbolType = 28
	TemplateTemplateParameter          SymbolType = 29
	FunctionTemplate                   SymbolType = 30
	ClassTemplate                      SymbolType = 31
	ClassTemplatePartialSpecialization SymbolType = 32

	NamespaceAlias       SymbolType = 33
	UsingDirective       SymbolType = 34
	UsingDeclaration     SymbolType = 35
	TypeAliasDeclaration SymbolType = 36
	AccessSpecifier      SymbolType = 39

	TypeReference      SymbolType = 43
	BaseSpecifier      SymbolType = 44
	TemplateReference  SymbolType = 45
	NamespaceReference SymbolType = 46
	MemberReference    SymbolType = 47
	LabelReference     SymbolType = 48

	OverloadedDeclarationReference SymbolType = 49
	VariableReference              SymbolType = 50

	UnexposedExpression            SymbolType = 100
	DeclarationReferenceExpression SymbolType = 101
	MemberReferenceExpression      SymbolType = 102
	FunctionCallExpression         SymbolType = 103

	BlockExpression SymbolType = 105

	IntegerLiteral   SymbolType = 106
	FloatingLiteral  SymbolType = 107
	ImaginaryLiteral SymbolType = 108
	StringLiteral    SymbolType = 109
	CharacterLiteral SymbolType = 110

	ArraySubscriptExpression SymbolType = 113

	CStyleCastExpression SymbolType = 117

	InitializationListExpression SymbolType = 119

	StaticCastExpression      SymbolType = 124
	DynamicCastExpression     SymbolType = 125
	ReinterpretCastExpression SymbolType = 126
	ConstCastExpression       SymbolType = 127
	FunctionalCastExpression  SymbolType = 128

	TypeidExpression         SymbolType = 129
	BoolLiteralExpression    SymbolType = 130
	NullPtrLiteralExpression SymbolType = 131
	ThisExpression           SymbolType = 132
	ThrowExpression          SymbolType = 133

	NewExpression    SymbolType = 134
	DeleteExpression SymbolType = 135

	LambdaExpression  SymbolType = 144
	FixedPointLiteral SymbolType = 149

	MacroDefinition    SymbolType = 501
	MacroExpansion     SymbolType = 502
	InclusionDirective SymbolType = 503

	TypeAliasTemplateDecl SymbolType = 601
)

var symbolTypeNames = map[SymbolType]string{
	Undefined:                          "Undefined",
	StructDeclaration:                  "StructDeclaration",
	UnionDeclaration:                   "UnionDeclaration",
	ClassDeclaration:                   "ClassDeclaration",
	EnumerationDeclaration:             "EnumerationDeclaration",
	FieldDeclaration:                   "FieldDeclaration",
	EnumerationConstantDeclaration:     "EnumerationConstantDeclaration",
	FunctionDeclaration:                "FunctionDeclaration",
	VariableDeclaration:                "VariableDeclaration",
	ParameterDeclaration:               "ParameterDeclaration",
	TypedefDeclaration:                 "TypedefDeclaration",
	MethodDeclaration:                  "MethodDeclaration",
	Namespace:                          "Namespace",
	Constructor:                        "Constructor",
	Destructor:                         "Destructor",
	ConversionFunction:                 "ConversionFunction",
	TemplateTypeParameter:              "TemplateTypeParameter",
	NonTypeTemplateParameter:           "NonTypeTemplateParameter",
	TemplateTemplateParameter:          "TemplateTemplateParameter",
	FunctionTemplate:                   "FunctionTemplate",
	ClassTemplate:                      "ClassTemplate",
	ClassTemplatePartialSpecialization: "ClassTemplatePartialSpecialization",
	NamespaceAlias:                     "NamespaceAlias",
	UsingDirective:                     "UsingDirective",
	UsingDeclaration:                   "UsingDeclaration",
	TypeAliasDeclaration:               "TypeAliasDeclaration",
	AccessSpecifier:                    "AccessSpecifier",
	TypeReference:                      "TypeReference",
	BaseSpecifier:                      "BaseSpecifier",
	TemplateReference:                  "TemplateReference",
	NamespaceReference:                 "NamespaceReference",
	MemberReference:                    "MemberReference",
	LabelReference:                     "LabelReference",
	OverloadedDeclarationReference:     "OverloadedDeclarationReference",
	VariableReference:                  "VariableReference",
	UnexposedExpression:                "UnexposedExpression",
	DeclarationReferenceExpression:     "DeclarationReferenceExpression",
	MemberReferenceExpression:          "MemberReferenceExpression",
	FunctionCallExpression:             "FunctionCallExpression",
	BlockExpression:                    "BlockExpression",
	IntegerLiteral:                     "IntegerLiteral",
	FloatingLiteral:                    "FloatingLiteral",
	ImaginaryLiteral:                   "ImaginaryLiteral",
	StringLiteral:                      "StringLiteral",
	CharacterLiteral:                   "CharacterLiteral",
	ArraySubscriptExpression:           "ArraySubscriptExpression",
	CStyleCastExpression:               "CStyleCastExpression",
	InitializationListExpression:       "InitializationListExpression",
	StaticCastExpression:               "StaticCastExpression",
	DynamicCastExpression:              "DynamicCastExpression",
	ReinterpretCastExpression:          "ReinterpretCastExpression",
	ConstCastExpression:                "ConstCastExpression",
	FunctionalCastExpression:           "FunctionalCastExpression",
	TypeidExpression:                   "TypeidExpression",
	BoolLiteralExpression:              "BoolLiteralExpression",
	NullPtrLiteralExpression:           "NullPtrLiteralExpression",
	ThisExpression:                     "ThisExpression",
	ThrowExpression:                    "ThrowExpression",
	NewExpression:                      "NewExpression",
	DeleteExpression:                   "DeleteExpression",
	LambdaExpression:                   "LambdaExpression",
	FixedPointLiteral:                  "FixedPointLiteral",
	MacroDefinition:                    "MacroDefinition",
	MacroExpansion:                     "MacroExpansion",
	InclusionDirective:                 "InclusionDirective",
	TypeAliasTemplateDecl:              "TypeAliasTemplateDecl",
}

// String renders the symbol's kind name, falling back to its numeric
// value for anything outside the known set.
func (s SymbolType) String() string {
	if name, ok := symbolTypeNames[s]; ok {
		return name
	}
	return "SymbolType(" + itoa(uint16(s)) + ")"
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
