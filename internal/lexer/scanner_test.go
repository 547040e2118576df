package lexer

import "testing"

func TestScanTokensBasic(t *testing.T) {
	toks, err := NewScanner("x + 2.5 * sin(y)").ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	want := []TokenType{TokenIdent, TokenPlus, TokenNumber, TokenStar, TokenIdent, TokenLParen, TokenIdent, TokenRParen, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d type = %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestScanTokensDoubleStarAliasesCaret(t *testing.T) {
	toks, err := NewScanner("2**3").ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	if toks[1].Type != TokenCaret || toks[1].Lexeme != "**" {
		t.Fatalf("got %+v, want caret token for **", toks[1])
	}
}

func TestScanTokensByteOffsets(t *testing.T) {
	toks, err := NewScanner("ab + cd").ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	if toks[0].Start != 1 {
		t.Errorf("first token start = %d, want 1", toks[0].Start)
	}
	if toks[1].Start != 4 {
		t.Errorf("'+' token start = %d, want 4", toks[1].Start)
	}
}

func TestScanTokensUnexpectedCharacter(t *testing.T) {
	_, err := NewScanner("x @ y").ScanTokens()
	if err == nil {
		t.Fatal("expected an error for '@'")
	}
	le, ok := err.(*LexError)
	if !ok {
		t.Fatalf("expected a *LexError, got %T", err)
	}
	if le.Offset != 3 {
		t.Errorf("offset = %d, want 3 (the '@')", le.Offset)
	}
}

func TestScanTokensEOFOffset(t *testing.T) {
	toks, err := NewScanner("(x-1").ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens: %v", err)
	}
	eof := toks[len(toks)-1]
	if eof.Type != TokenEOF {
		t.Fatalf("last token = %s, want EOF", eof.Type)
	}
	if eof.Start != 4 {
		t.Errorf("EOF.Start = %d, want 4", eof.Start)
	}
}
