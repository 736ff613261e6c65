package dispatch

import (
	"fmt"

	"github.com/nimo-project/registry/value"
)

// argErr reports a malformed argument without ever panicking on a
// caller-supplied value.Value — only protocol.ParseRequest's own array
// framing is trusted; everything inside args is treated as untrusted
// wire input (see value.Value's "callers of untrusted input must check
// Kind() first" contract).
func argErr(index int, want string, got value.Value) error {
	return fmt.Errorf("dispatch: argument %d: want %s, got %s", index, want, got.Kind())
}

func argString(args []value.Value, i int) (string, error) {
	if args[i].Kind() != value.KindString {
		return "", argErr(i, "string", args[i])
	}
	return args[i].AsString(), nil
}

func argInteger(args []value.Value, i int) (int64, error) {
	if args[i].Kind() != value.KindInteger {
		return 0, argErr(i, "integer", args[i])
	}
	return args[i].AsInteger(), nil
}

func argOptionalString(args []value.Value, i int) (string, bool, error) {
	if i >= len(args) {
		return "", false, nil
	}
	s, err := argString(args, i)
	return s, true, err
}
