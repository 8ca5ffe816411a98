// Package compiler turns Lox source directly into bytecode in a single
// pass: there is no intermediate AST. The Parser drives a Pratt
// expression table while a chain of Compiler values (one per function
// being compiled, linked through enclosing) tracks locals, upvalues and
// scope depth the way the runtime call frames will later need them.
package compiler

import (
	"fmt"
	"os"
	"strconv"

	"lox/internal/chunk"
	"lox/internal/heap"
	"lox/internal/lexer"
	"lox/internal/token"
	"lox/internal/value"
)

// FunctionType tells the compiler which implicit prologue/epilogue to emit:
// a bare script, a plain function, a method, or a class initializer (whose
// implicit return yields "this" instead of nil).
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeInitializer
	TypeMethod
	TypeScript
)

// Local is a resolved stack slot: Depth -1 means "declared but not yet
// defined" (its own initializer is still being compiled), a state
// resolveLocalChecked rejects to catch `var a = a;`.
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// Upvalue records how a function reaches a variable captured from an
// enclosing function: Index is either a slot in the immediately enclosing
// function's locals (IsLocal) or an index into that function's own
// upvalue list.
type Upvalue struct {
	Index   uint8
	IsLocal bool
}

// Compiler holds one function's compile-time state. The chain of
// enclosing pointers mirrors the call-frame chain the VM will build at
// runtime, which is exactly what resolveUpvalue walks to thread a
// capture through every intermediate function.
type Compiler struct {
	enclosing *Compiler

	function *value.ObjFunction
	fnType   FunctionType

	locals     []Local
	upvalues   []Upvalue
	scopeDepth int
}

func newCompiler(enclosing *Compiler, h *heap.Heap, fnType FunctionType, name string) *Compiler {
	fn := h.NewFunction()
	if name != "" {
		fn.Name = h.InternString(name)
	}
	fn.Chunk = chunk.New()

	c := &Compiler{enclosing: enclosing, function: fn, fnType: fnType}

	// Slot 0 is reserved: for methods/initializers it holds the receiver
	// ("this"), for plain functions it's simply unnamed and unusable.
	slotName := ""
	if fnType == TypeMethod || fnType == TypeInitializer {
		slotName = "this"
	}
	c.locals = append(c.locals, Local{Name: slotName, Depth: 0})
	return c
}

// classCompiler tracks nesting of class bodies so `this`/`super` resolve
// correctly and a superclass-less class rejects `super`.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Parser is the whole front end: scanner position plus the active
// Compiler/classCompiler chains. Compile is the sole entry point.
type Parser struct {
	lex  *lexer.Lexer
	heap *heap.Heap

	current  token.Token
	previous token.Token

	hadError  bool
	panicMode bool

	compiler *Compiler
	class    *classCompiler
}

// Compile compiles source into a top-level function (a "script") whose
// call is how the VM begins execution. Each parse/compile error is
// written to stderr as it is found (compilation resynchronizes and keeps
// going, so more than the first is reported); if any occurred, Compile
// returns a nil function and a generic "compile error" error.
func Compile(source string, h *heap.Heap) (*value.ObjFunction, error) {
	p := &Parser{lex: lexer.New(source), heap: h}
	p.compiler = newCompiler(nil, h, TypeScript, "")
	h.PushCompilerRoot(p.compiler.function)
	defer h.PopCompilerRoot()

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	fn := p.endCompiler()

	if p.hadError {
		return nil, fmt.Errorf("compile error")
	}
	return fn, nil
}

// ---- token stream ----

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.NextToken()
		if p.current.Type != token.ERROR {
			break
		}
		p.errorAtCurrent(p.current.Literal)
	}
}

func (p *Parser) check(tt token.TokenType) bool { return p.current.Type == tt }

func (p *Parser) match(tt token.TokenType) bool {
	if !p.check(tt) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(tt token.TokenType, msg string) {
	if p.current.Type == tt {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) errorAtCurrent(msg string)  { p.errorAt(p.current, msg) }
func (p *Parser) errorAtPrevious(msg string) { p.errorAt(p.previous, msg) }

func (p *Parser) errorAt(t token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	if t.Type == token.EOF {
		fmt.Fprintf(os.Stderr, "[line %d] Error at end: %s\n", t.Line, msg)
	} else if t.Type == token.ERROR {
		fmt.Fprintf(os.Stderr, "[line %d] Error: %s\n", t.Line, msg)
	} else {
		fmt.Fprintf(os.Stderr, "[line %d] Error at '%s': %s\n", t.Line, t.Literal, msg)
	}
	p.hadError = true
}

// synchronize discards tokens until it finds a likely statement boundary,
// so one parse error reports instead of cascading into a wall of noise.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Type != token.EOF {
		if p.previous.Type == token.SEMICOLON {
			return
		}
		if token.StatementKeyword(p.current.Type) {
			return
		}
		p.advance()
	}
}

// ---- byte/constant emission ----

func (p *Parser) chunk() *chunk.Chunk { return p.compiler.function.Chunk.(*chunk.Chunk) }

func (p *Parser) emitByte(b byte) {
	p.chunk().Write(b, p.previous.Line)
}

func (p *Parser) emitOp(op chunk.OpCode) { p.emitByte(byte(op)) }

func (p *Parser) emitBytes(op chunk.OpCode, b byte) {
	p.emitOp(op)
	p.emitByte(b)
}

func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(chunk.OpLoop)
	offset := len(p.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.errorAtPrevious("loop body too large")
	}
	p.emitByte(byte((offset >> 8) & 0xff))
	p.emitByte(byte(offset & 0xff))
}

func (p *Parser) emitJump(op chunk.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.chunk().Code) - 2
}

func (p *Parser) patchJump(offset int) {
	jump := len(p.chunk().Code) - offset - 2
	if jump > 0xffff {
		p.errorAtPrevious("too much code to jump over")
	}
	p.chunk().Code[offset] = byte((jump >> 8) & 0xff)
	p.chunk().Code[offset+1] = byte(jump & 0xff)
}

func (p *Parser) makeConstant(v value.Value) byte {
	idx := p.chunk().AddConstant(v)
	if idx < 0 {
		p.errorAtPrevious("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (p *Parser) emitConstant(v value.Value) {
	p.emitBytes(chunk.OpConstant, p.makeConstant(v))
}

func (p *Parser) emitReturn() {
	if p.compiler.fnType == TypeInitializer {
		p.emitBytes(chunk.OpGetLocal, 0)
	} else {
		p.emitOp(chunk.OpNil)
	}
	p.emitOp(chunk.OpReturn)
}

func (p *Parser) endCompiler() *value.ObjFunction {
	p.emitReturn()
	fn := p.compiler.function
	p.compiler = p.compiler.enclosing
	return fn
}

// ---- scopes, locals, upvalues ----

func (p *Parser) beginScope() { p.compiler.scopeDepth++ }

func (p *Parser) endScope() {
	p.compiler.scopeDepth--
	locals := p.compiler.locals
	for len(locals) > 0 && locals[len(locals)-1].Depth > p.compiler.scopeDepth {
		if locals[len(locals)-1].IsCaptured {
			p.emitOp(chunk.OpCloseUpvalue)
		} else {
			p.emitOp(chunk.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	p.compiler.locals = locals
}

func (p *Parser) addLocal(name string) {
	if len(p.compiler.locals) >= 256 {
		p.errorAtPrevious("too many local variables in function")
		return
	}
	p.compiler.locals = append(p.compiler.locals, Local{Name: name, Depth: -1})
}

func (p *Parser) declareVariable() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	name := p.previous.Literal
	locals := p.compiler.locals
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i]
		if l.Depth != -1 && l.Depth < p.compiler.scopeDepth {
			break
		}
		if l.Name == name {
			p.errorAtPrevious("already a variable with this name in this scope")
		}
	}
	p.addLocal(name)
}

func (p *Parser) markInitialized() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	p.compiler.locals[len(p.compiler.locals)-1].Depth = p.compiler.scopeDepth
}

func resolveLocal(c *Compiler, name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			return i
		}
	}
	return -1
}

func (p *Parser) resolveLocalChecked(c *Compiler, name string) int {
	idx := resolveLocal(c, name)
	if idx != -1 && c.locals[idx].Depth == -1 {
		p.errorAtPrevious("can't read local variable in its own initializer")
	}
	return idx
}

func addUpvalue(c *Compiler, index uint8, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	c.upvalues = append(c.upvalues, Upvalue{Index: index, IsLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1
}

// resolveUpvalue walks the enclosing-compiler chain looking for name,
// wiring an upvalue slot in every intermediate function so a deeply
// nested closure can still reach an outer local.
func (p *Parser) resolveUpvalue(c *Compiler, name string) int {
	if c.enclosing == nil {
		return -1
	}
	if local := p.resolveLocalChecked(c.enclosing, name); local != -1 {
		c.enclosing.locals[local].IsCaptured = true
		return addUpvalue(c, byte(local), true)
	}
	if up := p.resolveUpvalue(c.enclosing, name); up != -1 {
		return addUpvalue(c, byte(up), false)
	}
	return -1
}

func (p *Parser) identifierConstant(name string) byte {
	return p.makeConstant(value.ObjVal(p.heap.InternString(name)))
}

func (p *Parser) parseVariable(errMsg string) byte {
	p.consume(token.IDENTIFIER, errMsg)
	p.declareVariable()
	if p.compiler.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous.Literal)
}

func (p *Parser) defineVariable(global byte) {
	if p.compiler.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitBytes(chunk.OpDefineGlobal, global)
}

// ---- Pratt expression parsing ----

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[token.TokenType]parseRule

func init() {
	rules = map[token.TokenType]parseRule{
		token.LEFT_PAREN:    {prefix: (*Parser).grouping, infix: (*Parser).call, precedence: precCall},
		token.DOT:           {infix: (*Parser).dot, precedence: precCall},
		token.MINUS:         {prefix: (*Parser).unary, infix: (*Parser).binary, precedence: precTerm},
		token.PLUS:          {infix: (*Parser).binary, precedence: precTerm},
		token.SLASH:         {infix: (*Parser).binary, precedence: precFactor},
		token.STAR:          {infix: (*Parser).binary, precedence: precFactor},
		token.BANG:          {prefix: (*Parser).unary},
		token.BANG_EQUAL:    {infix: (*Parser).binary, precedence: precEquality},
		token.EQUAL_EQUAL:   {infix: (*Parser).binary, precedence: precEquality},
		token.GREATER:       {infix: (*Parser).binary, precedence: precComparison},
		token.GREATER_EQUAL: {infix: (*Parser).binary, precedence: precComparison},
		token.LESS:          {infix: (*Parser).binary, precedence: precComparison},
		token.LESS_EQUAL:    {infix: (*Parser).binary, precedence: precComparison},
		token.IDENTIFIER:    {prefix: (*Parser).variable},
		token.STRING:        {prefix: (*Parser).string},
		token.NUMBER:        {prefix: (*Parser).number},
		token.AND:           {infix: (*Parser).and_, precedence: precAnd},
		token.OR:            {infix: (*Parser).or_, precedence: precOr},
		token.FALSE:         {prefix: (*Parser).literal},
		token.TRUE:          {prefix: (*Parser).literal},
		token.NIL:           {prefix: (*Parser).literal},
		token.THIS:          {prefix: (*Parser).this_},
		token.SUPER:         {prefix: (*Parser).super_},
	}
}

func getRule(tt token.TokenType) parseRule { return rules[tt] }

func (p *Parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := getRule(p.previous.Type)
	if rule.prefix == nil {
		p.errorAtPrevious("expect expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for prec <= getRule(p.current.Type).precedence {
		p.advance()
		infix := getRule(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(token.EQUAL) {
		p.errorAtPrevious("invalid assignment target")
	}
}

func (p *Parser) expression() { p.parsePrecedence(precAssignment) }

func (p *Parser) number(_ bool) {
	n, err := strconv.ParseFloat(p.previous.Literal, 64)
	if err != nil {
		p.errorAtPrevious("invalid number literal")
		return
	}
	p.emitConstant(value.NumberVal(n))
}

func (p *Parser) string(_ bool) {
	p.emitConstant(value.ObjVal(p.heap.InternString(p.previous.Literal)))
}

func (p *Parser) literal(_ bool) {
	switch p.previous.Type {
	case token.FALSE:
		p.emitOp(chunk.OpFalse)
	case token.TRUE:
		p.emitOp(chunk.OpTrue)
	case token.NIL:
		p.emitOp(chunk.OpNil)
	}
}

func (p *Parser) grouping(_ bool) {
	p.expression()
	p.consume(token.RIGHT_PAREN, "expect ')' after expression")
}

func (p *Parser) unary(_ bool) {
	opType := p.previous.Type
	p.parsePrecedence(precUnary)
	switch opType {
	case token.BANG:
		p.emitOp(chunk.OpNot)
	case token.MINUS:
		p.emitOp(chunk.OpNegate)
	}
}

func (p *Parser) binary(_ bool) {
	opType := p.previous.Type
	rule := getRule(opType)
	p.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.BANG_EQUAL:
		p.emitOp(chunk.OpEqual)
		p.emitOp(chunk.OpNot)
	case token.EQUAL_EQUAL:
		p.emitOp(chunk.OpEqual)
	case token.GREATER:
		p.emitOp(chunk.OpGreater)
	case token.GREATER_EQUAL:
		p.emitOp(chunk.OpLess)
		p.emitOp(chunk.OpNot)
	case token.LESS:
		p.emitOp(chunk.OpLess)
	case token.LESS_EQUAL:
		p.emitOp(chunk.OpGreater)
		p.emitOp(chunk.OpNot)
	case token.PLUS:
		p.emitOp(chunk.OpAdd)
	case token.MINUS:
		p.emitOp(chunk.OpSubtract)
	case token.STAR:
		p.emitOp(chunk.OpMultiply)
	case token.SLASH:
		p.emitOp(chunk.OpDivide)
	}
}

func (p *Parser) and_(_ bool) {
	endJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *Parser) or_(_ bool) {
	elseJump := p.emitJump(chunk.OpJumpIfFalse)
	endJump := p.emitJump(chunk.OpJump)
	p.patchJump(elseJump)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *Parser) argumentList() byte {
	var argc int
	if !p.check(token.RIGHT_PAREN) {
		for {
			p.expression()
			if argc == 255 {
				p.errorAtPrevious("can't have more than 255 arguments")
			}
			argc++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "expect ')' after arguments")
	return byte(argc)
}

func (p *Parser) call(_ bool) {
	argc := p.argumentList()
	p.emitBytes(chunk.OpCall, argc)
}

func (p *Parser) dot(canAssign bool) {
	p.consume(token.IDENTIFIER, "expect property name after '.'")
	name := p.identifierConstant(p.previous.Literal)

	switch {
	case canAssign && p.match(token.EQUAL):
		p.expression()
		p.emitBytes(chunk.OpSetProperty, name)
	case p.match(token.LEFT_PAREN):
		argc := p.argumentList()
		p.emitBytes(chunk.OpInvoke, name)
		p.emitByte(argc)
	default:
		p.emitBytes(chunk.OpGetProperty, name)
	}
}

func (p *Parser) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.OpCode
	arg := p.resolveLocalChecked(p.compiler, name)
	if arg != -1 {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	} else if arg = p.resolveUpvalue(p.compiler, name); arg != -1 {
		getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
	} else {
		arg = int(p.identifierConstant(name))
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && p.match(token.EQUAL) {
		p.expression()
		p.emitBytes(setOp, byte(arg))
	} else {
		p.emitBytes(getOp, byte(arg))
	}
}

func (p *Parser) variable(canAssign bool) { p.namedVariable(p.previous.Literal, canAssign) }

const syntheticThis = "this"

func (p *Parser) this_(_ bool) {
	if p.class == nil {
		p.errorAtPrevious("can't use 'this' outside of a class")
		return
	}
	p.namedVariable(syntheticThis, false)
}

func (p *Parser) super_(_ bool) {
	if p.class == nil {
		p.errorAtPrevious("can't use 'super' outside of a class")
	} else if !p.class.hasSuperclass {
		p.errorAtPrevious("can't use 'super' in a class with no superclass")
	}

	p.consume(token.DOT, "expect '.' after 'super'")
	p.consume(token.IDENTIFIER, "expect superclass method name")
	name := p.identifierConstant(p.previous.Literal)

	p.namedVariable(syntheticThis, false)
	if p.match(token.LEFT_PAREN) {
		argc := p.argumentList()
		p.namedVariable("super", false)
		p.emitBytes(chunk.OpSuperInvoke, name)
		p.emitByte(argc)
	} else {
		p.namedVariable("super", false)
		p.emitBytes(chunk.OpGetSuper, name)
	}
}

// ---- declarations and statements ----

func (p *Parser) declaration() {
	switch {
	case p.match(token.CLASS):
		p.classDeclaration()
	case p.match(token.FUN):
		p.funDeclaration()
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) classDeclaration() {
	p.consume(token.IDENTIFIER, "expect class name")
	className := p.previous.Literal
	nameConstant := p.identifierConstant(className)
	p.declareVariable()

	p.emitBytes(chunk.OpClass, nameConstant)
	p.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: p.class}
	p.class = cc

	if p.match(token.LESS) {
		p.consume(token.IDENTIFIER, "expect superclass name")
		p.variable(false)
		if p.previous.Literal == className {
			p.errorAtPrevious("a class can't inherit from itself")
		}

		p.beginScope()
		p.addLocal("super")
		p.defineVariable(0)

		p.namedVariable(className, false)
		p.emitOp(chunk.OpInherit)
		cc.hasSuperclass = true
	}

	p.namedVariable(className, false)
	p.consume(token.LEFT_BRACE, "expect '{' before class body")
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RIGHT_BRACE, "expect '}' after class body")
	p.emitOp(chunk.OpPop)

	if cc.hasSuperclass {
		p.endScope()
	}
	p.class = p.class.enclosing
}

func (p *Parser) method() {
	p.consume(token.IDENTIFIER, "expect method name")
	name := p.previous.Literal
	constant := p.identifierConstant(name)

	fnType := TypeMethod
	if name == "init" {
		fnType = TypeInitializer
	}
	p.functionBody(fnType, name)
	p.emitBytes(chunk.OpMethod, constant)
}

func (p *Parser) funDeclaration() {
	global := p.parseVariable("expect function name")
	p.markInitialized()
	p.functionBody(TypeFunction, p.previous.Literal)
	p.defineVariable(global)
}

func (p *Parser) functionBody(fnType FunctionType, name string) {
	child := newCompiler(p.compiler, p.heap, fnType, name)
	p.compiler = child
	p.heap.PushCompilerRoot(child.function)
	defer p.heap.PopCompilerRoot()

	p.beginScope()
	p.consume(token.LEFT_PAREN, "expect '(' after function name")
	if !p.check(token.RIGHT_PAREN) {
		for {
			p.compiler.function.Arity++
			if p.compiler.function.Arity > 255 {
				p.errorAtCurrent("can't have more than 255 parameters")
			}
			constant := p.parseVariable("expect parameter name")
			p.defineVariable(constant)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "expect ')' after parameters")
	p.consume(token.LEFT_BRACE, "expect '{' before function body")
	p.block()

	fn := p.endCompiler()
	enclosingChunk := child.enclosing.function.Chunk.(*chunk.Chunk)
	constant := enclosingChunk.AddConstant(value.ObjVal(fn))
	if constant < 0 {
		p.errorAtPrevious("too many constants in one chunk")
		constant = 0
	}
	p.emitBytes(chunk.OpClosure, byte(constant))
	for _, uv := range child.upvalues {
		if uv.IsLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(uv.Index)
	}
}

func (p *Parser) varDeclaration() {
	global := p.parseVariable("expect variable name")
	if p.match(token.EQUAL) {
		p.expression()
	} else {
		p.emitOp(chunk.OpNil)
	}
	p.consume(token.SEMICOLON, "expect ';' after variable declaration")
	p.defineVariable(global)
}

func (p *Parser) statement() {
	switch {
	case p.match(token.PRINT):
		p.printStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.LEFT_BRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) block() {
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RIGHT_BRACE, "expect '}' after block")
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "expect ';' after value")
	p.emitOp(chunk.OpPrint)
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "expect ';' after expression")
	p.emitOp(chunk.OpPop)
}

func (p *Parser) returnStatement() {
	if p.compiler.fnType == TypeScript {
		p.errorAtPrevious("can't return from top-level code")
	}
	if p.match(token.SEMICOLON) {
		p.emitReturn()
		return
	}
	if p.compiler.fnType == TypeInitializer {
		p.errorAtPrevious("can't return a value from an initializer")
	}
	p.expression()
	p.consume(token.SEMICOLON, "expect ';' after return value")
	p.emitOp(chunk.OpReturn)
}

func (p *Parser) ifStatement() {
	p.consume(token.LEFT_PAREN, "expect '(' after 'if'")
	p.expression()
	p.consume(token.RIGHT_PAREN, "expect ')' after condition")

	thenJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()

	elseJump := p.emitJump(chunk.OpJump)
	p.patchJump(thenJump)
	p.emitOp(chunk.OpPop)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk().Code)

	p.consume(token.LEFT_PAREN, "expect '(' after 'while'")
	p.expression()
	p.consume(token.RIGHT_PAREN, "expect ')' after condition")

	exitJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(chunk.OpPop)
}

func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(token.LEFT_PAREN, "expect '(' after 'for'")

	switch {
	case p.match(token.SEMICOLON):
		// no initializer
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.match(token.SEMICOLON) {
		p.expression()
		p.consume(token.SEMICOLON, "expect ';' after loop condition")
		exitJump = p.emitJump(chunk.OpJumpIfFalse)
		p.emitOp(chunk.OpPop)
	}

	if !p.match(token.RIGHT_PAREN) {
		bodyJump := p.emitJump(chunk.OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitOp(chunk.OpPop)
		p.consume(token.RIGHT_PAREN, "expect ')' after for clauses")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(chunk.OpPop)
	}

	p.endScope()
}
