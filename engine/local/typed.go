package local

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/engine"
)

// RegisterTyped binds a typed handler to a contract name, wrapping it
// into the payload-based handler the engine executes. Input payloads
// are decoded into In and outputs encoded back through JSON, so field
// tags follow the contract's wire names.
func RegisterTyped[In, Out any](e *Engine, contractName string, fn func(ctx context.Context, in In) (Out, error)) error {
	return e.Register(contractName, func(ctx context.Context, payload contract.Payload) (contract.Payload, error) {
		var in In
		if err := decode(payload, &in); err != nil {
			return nil, &engine.DefinitionError{
				Stage: contractName,
				Err:   fmt.Errorf("decode input for %q: %w", contractName, err),
			}
		}

		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}

		var result contract.Payload
		if err := decode(out, &result); err != nil {
			return nil, engine.Transient(fmt.Errorf("encode output for %q: %w", contractName, err))
		}
		return result, nil
	})
}

// MustRegisterTyped is RegisterTyped panicking on error.
func MustRegisterTyped[In, Out any](e *Engine, contractName string, fn func(ctx context.Context, in In) (Out, error)) {
	if err := RegisterTyped(e, contractName, fn); err != nil {
		panic(err)
	}
}

// decode round-trips a value through JSON into dst.
func decode(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
