// Package placeholder resolves and matches ${NAME} tokens inside document
// trees.
//
// A placeholder is ${NAME}. The escaped form \${NAME} is literal text: it
// decodes to ${NAME} (backslash consumed) and is never substituted. In front
// of a placeholder, \\ is one literal backslash, so \\${NAME} is a backslash
// followed by a substitution.
//
// Resolve builds concrete requests: every placeholder in a string leaf is
// replaced by its cut register value, and a missing name fails with
// *MissingVariableError. ResolveKnown hydrates expected responses: only names
// present in the register are substituted, the rest remain placeholders.
//
// Match validates an observed document against an expected template. A
// placeholder matches any observed value at its position; placeholders
// embedded in a longer string match any substring. Object fields absent from
// the template are ignored unless strict matching is requested.
package placeholder
