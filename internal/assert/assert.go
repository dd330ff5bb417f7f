package assert

import "fmt"

func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}

// Positive panics when n is zero or negative, label names the offending value.
func Positive(label string, n int) {
	if n <= 0 {
		panic(fmt.Sprintf("expected %s to be positive, got %d", label, n))
	}
}
