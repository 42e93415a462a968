package flow

import (
	"fmt"
	"regexp"
)

var templateToken = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// RenderTemplate substitutes {variable_name} tokens from the variable
// store. Tokens without a matching variable are left verbatim so a typo in
// the authoring tool degrades visibly instead of erroring.
func RenderTemplate(template string, vars Variables) string {
	return templateToken.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprint(val)
		}
		return token
	})
}
