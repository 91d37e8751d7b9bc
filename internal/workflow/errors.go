package workflow

import (
	"fmt"
	"strings"
)

// UnknownWorkflowError — запрошен workflow вне закрытого набора.
// Ошибка вызывающего, не системы: возвращается до любой персистенции.
type UnknownWorkflowError struct {
	// Name — запрошенное имя.
	Name string

	// Valid — список допустимых имён.
	Valid []string
}

func (e *UnknownWorkflowError) Error() string {
	return fmt.Sprintf("unknown workflow %q, valid workflows: %s", e.Name, strings.Join(e.Valid, ", "))
}
