package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/sailhdl/sail-ls/jsonrpc2"
)

// typedHandler wraps one registered method handler together with the
// reflection facts dispatch needs: the decoded parameter type and which of
// the optional arguments (conn, params) the function declares.
//
// Accepted signatures:
//
//	func(ctx context.Context [, conn *jsonrpc2.Conn] [, params P]) ([R,] [error])
//
// where P is a pointer-to-struct, struct, map, slice or basic type that
// encoding/json can unmarshal into.
type typedHandler struct {
	fn          any
	paramType   reflect.Type // base (non-pointer) type of P; nil when !takesParams
	takesConn   bool
	takesParams bool
}

// invoke decodes params (if the handler wants them) and calls the handler,
// returning whatever result/error it produced. A params payload that fails
// to unmarshal becomes an InvalidParams error; so does a payload sent to a
// handler that declares none.
func (h *typedHandler) invoke(ctx context.Context, conn *jsonrpc2.Conn, params json.RawMessage) (any, error) {
	hasPayload := len(params) > 0 && string(params) != "null"

	args := []reflect.Value{reflect.ValueOf(ctx)}
	if h.takesConn {
		args = append(args, reflect.ValueOf(conn))
	}

	fnType := reflect.TypeOf(h.fn)
	if h.takesParams {
		decoded := reflect.New(h.paramType)
		if hasPayload {
			if err := json.Unmarshal(params, decoded.Interface()); err != nil {
				return nil, jsonrpc2.Errorf(jsonrpc2.InvalidParams,
					"failed to unmarshal params: %v", err)
			}
		}
		// The handler may declare P as a pointer or a value; decoded is
		// always *P, so dereference when the signature wants the value.
		wantType := fnType.In(fnType.NumIn() - 1)
		if wantType.Kind() == reflect.Ptr {
			args = append(args, decoded)
		} else {
			args = append(args, decoded.Elem())
		}
	} else if hasPayload {
		return nil, jsonrpc2.NewError(jsonrpc2.InvalidParams,
			"method received unexpected parameters")
	}

	out := reflect.ValueOf(h.fn).Call(args)

	var result any
	var err error
	switch len(out) {
	case 0:
	case 1:
		// A single return is either the error or the result.
		if e, ok := out[0].Interface().(error); ok {
			err = e
		} else if !out[0].IsZero() {
			result = out[0].Interface()
		}
	case 2:
		if !out[0].IsNil() {
			result = out[0].Interface()
		}
		if !out[1].IsNil() {
			err = out[1].Interface().(error)
		}
	}
	return result, err
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	connType    = reflect.TypeOf((*jsonrpc2.Conn)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// validateHandlerFunc checks that fn has one of the accepted handler shapes
// (see typedHandler) and reports the parameter type and optional-argument
// flags dispatch will need.
func validateHandlerFunc(fn any) (paramType reflect.Type, takesConn, takesParams bool, err error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil, false, false, fmt.Errorf("handler must be a function")
	}
	if t.NumIn() < 1 || t.In(0) != contextType {
		return nil, false, false, fmt.Errorf("handler must accept context.Context as its first argument")
	}

	next := 1
	if t.NumIn() > next && t.In(next) == connType {
		takesConn = true
		next++
	}
	if t.NumIn() > next {
		pt := t.In(next)
		switch pt.Kind() {
		case reflect.Ptr:
			paramType = pt.Elem()
		case reflect.Struct, reflect.Interface, reflect.Map, reflect.Slice,
			reflect.String, reflect.Bool, reflect.Int, reflect.Uint,
			reflect.Float32, reflect.Float64:
			paramType = pt
		default:
			return nil, false, false, fmt.Errorf(
				"handler param type %s is not JSON-unmarshallable", pt)
		}
		takesParams = true
		next++
	}
	if t.NumIn() > next {
		return nil, false, false, fmt.Errorf(
			"handler has too many arguments (max: context, conn, params)")
	}

	switch t.NumOut() {
	case 0, 1:
		// Zero returns, a bare result, or a bare error are all fine.
	case 2:
		if !t.Out(1).Implements(errorType) {
			return nil, false, false, fmt.Errorf(
				"handler's second return value must be error")
		}
	default:
		return nil, false, false, fmt.Errorf(
			"handler has too many return values (max: result, error)")
	}
	return paramType, takesConn, takesParams, nil
}
