package main

import (
	"fmt"
	"os"

	"riscc/src/ast"
	"riscc/src/cmd"
	"riscc/src/types"
)

// sampleProgram builds a minimal placeholder AST: `func main() i32 {
// return 0; }`. Lexing, parsing and name resolution live upstream of
// this mid-end; until that front end is wired in, main hands the CLI
// this fixed tree instead of reading source text.
func sampleProgram() *ast.DeclarationList {
	i32 := types.Type{Native: types.I32}
	return &ast.DeclarationList{
		Decls: []ast.Node{
			&ast.FunctionDecl{
				Name:       "main",
				ReturnType: i32,
				Body: &ast.CompoundStmt{
					Stmts: []ast.Node{
						&ast.Jump{Kind: ast.JumpReturn, Expr: &ast.Primary{Kind: ast.PrimaryInt, Tok: ast.IntLit(0), Typ: i32}},
					},
				},
			},
		},
	}
}

func main() {
	rootCmd := cmd.NewRootCommand(sampleProgram())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
