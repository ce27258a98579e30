// Package cursor holds the ANSI escape sequences used to format text sent
// to client terminals.
package cursor

import "fmt"

const (
	Clear          = "\x1b[2J\x1b[H"
	Reset          = "\x1b[0m"
	Red            = "\x1b[31m"
	Green          = "\x1b[32m"
	Blue           = "\x1b[34m"
	EraseToLineEnd = "\x1b[K"
)

// Up moves the cursor n lines up.
func Up(n int) string {
	return fmt.Sprintf("\x1b[%dA", n)
}

// MoveToColumn moves the cursor to column n (1-based).
func MoveToColumn(n int) string {
	return fmt.Sprintf("\x1b[%dG", n)
}

// Colorize wraps s in color and a reset.
func Colorize(color string, s any) string {
	return fmt.Sprintf("%s%v%s", color, s, Reset)
}
