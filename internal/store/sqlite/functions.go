package sqlite

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"modernc.org/sqlite"
)

// foldFunc lowercases with Unicode rules. The built-in lower() only folds
// ASCII, so "Élan" would sort and match differently than in the Badger store.
const foldFunc = "quill_fold"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs the custom SQL functions for every connection
// opened afterwards. The driver keeps them in package state.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction(foldFunc, 1, fold)
	})
	return registerErr
}

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument %T", foldFunc, v)
	}
}
