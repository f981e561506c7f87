package lintpolicy

// Default returns the lint policy of the React single-page application
// frontkit was built for. no-console is an error in production builds and
// off otherwise. Override globs start with "**/" so they match at any depth
// below the directory CheckOverrides walks.
func Default(production bool) *Policy {
	console := Off
	if production {
		console = Error
	}

	p := &Policy{
		Env: map[string]bool{
			"browser": true,
			"es2021":  true,
			"node":    true,
			"jest":    true,
		},
		Extends: StringList{"react-app"},
		ParserOptions: ParserOptions{
			EcmaFeatures: map[string]bool{"jsx": true},
			EcmaVersion:  "latest",
			SourceType:   "module",
		},
		Plugins: []string{"react", "react-hooks"},
		Rules: RuleSet{
			"no-console": Rule(console),

			"react/prop-types":            Rule(Off),
			"arrow-parens":                Rule(Off),
			"quotes":                      Rule(Off),
			"indent":                      Rule(Off),
			"max-len":                     Rule(Off),
			"react/no-unescaped-entities": Rule(Off),
			"no-case-declarations":        Rule(Off),
			"comma-dangle":                Rule(Off),
			"arrow-body-style":            Rule(Off),

			"no-unused-vars":              Rule(Warn),
			"no-useless-catch":            Rule(Warn),
			"no-debugger":                 Rule(Warn),
			"no-alert":                    Rule(Warn),
			"react-hooks/exhaustive-deps": Rule(Warn),
			"prefer-const":                Rule(Warn),
			"prefer-destructuring":        Rule(Warn),
			"prefer-template":             Rule(Warn),
			"semi":                        Rule(Warn, "always"),

			"no-use-before-define":       Rule(Error),
			"no-undef":                   Rule(Error),
			"react/jsx-uses-react":       Rule(Error),
			"react/jsx-uses-vars":        Rule(Error),
			"react-hooks/rules-of-hooks": Rule(Error),
			"no-var":                     Rule(Error),
		},
		Overrides: []Override{
			{
				Files: StringList{"**/*.test.js", "**/*.test.jsx", "**/*.spec.js", "**/*.spec.jsx"},
				Env:   map[string]bool{"jest": true},
				Rules: RuleSet{"max-len": Rule(Off)},
			},
		},
		Settings: map[string]any{
			"react": map[string]any{"version": "detect"},
		},
	}
	if err := p.Compile(); err != nil {
		panic(err)
	}
	return p
}
