package eventbus

import (
	"reflect"

	"github.com/KirkDiggler/starbus/internal/errors"
)

var errorType = reflect.TypeFor[error]()

// Handler describes one callable a subscriber binds to an event type. Build it
// with Handle, HandleErr or Bind. Invalid descriptors are reported when they
// are passed to Register, never at publish time.
type Handler struct {
	eventType reflect.Type
	accepts   func(event any) bool
	invoke    func(event any) error
	main      bool
	err       error
}

// OnMain returns a copy of the handler that runs on the bus's MainContext
func (h Handler) OnMain() Handler {
	h.main = true
	return h
}

// EventType returns the declared event type, nil for an empty descriptor
func (h Handler) EventType() reflect.Type {
	return h.eventType
}

// MainThread reports whether the handler is posted to the main context
func (h Handler) MainThread() bool {
	return h.main
}

// Handle binds fn to events assignable to T.
func Handle[T any](fn func(T)) Handler {
	if fn == nil {
		return HandleErr[T](nil)
	}
	return HandleErr(func(event T) error {
		fn(event)
		return nil
	})
}

// HandleErr binds fn to events assignable to T. A non-nil error from fn counts
// as a handler failure.
func HandleErr[T any](fn func(T) error) Handler {
	eventType := reflect.TypeFor[T]()
	if fn == nil {
		return Handler{
			eventType: eventType,
			err:       errors.Configurationf("handler for %s is nil", eventType),
		}
	}
	if err := checkEventType(eventType); err != nil {
		return Handler{eventType: eventType, err: err}
	}

	return Handler{
		eventType: eventType,
		accepts: func(event any) bool {
			_, ok := event.(T)
			return ok
		},
		invoke: func(event any) error {
			return fn(event.(T))
		},
	}
}

// Bind builds a handler from an arbitrary func value, for binding tables that
// are assembled at runtime or generated. fn must take exactly one non-primitive
// parameter and return either nothing or a single error.
func Bind(fn any) Handler {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return Handler{err: errors.Configurationf("handler must be a func, got %T", fn)}
	}
	if v.IsNil() {
		return Handler{err: errors.Configurationf("handler %T is nil", fn)}
	}

	t := v.Type()
	if t.NumIn() != 1 || t.IsVariadic() {
		return Handler{err: errors.Configurationf("handler %s must have exactly one parameter", t)}
	}

	eventType := t.In(0)
	if err := checkEventType(eventType); err != nil {
		return Handler{eventType: eventType, err: err}
	}

	returnsErr := false
	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0) == errorType:
		returnsErr = true
	default:
		return Handler{
			eventType: eventType,
			err:       errors.Configurationf("handler %s may only return an error", t),
		}
	}

	return Handler{
		eventType: eventType,
		accepts: func(event any) bool {
			return reflect.TypeOf(event).AssignableTo(eventType)
		},
		invoke: func(event any) error {
			out := v.Call([]reflect.Value{reflect.ValueOf(event)})
			if returnsErr && !out[0].IsNil() {
				return out[0].Interface().(error)
			}
			return nil
		},
	}
}

func checkEventType(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return errors.Configurationf("handler parameter must not be a primitive type, got %s", t)
	}
	return nil
}
