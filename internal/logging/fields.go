package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/pdiddy/office2pdf/pkg/types"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Source adds the source document path.
func Source(path string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("source", path)
	}
}

// Output adds the published PDF path.
func Output(path string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("output", path)
	}
}

// Engine adds an engine name field.
func Engine(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("engine", name)
	}
}

// Kind adds the document kind.
func Kind(k types.DocumentKind) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("kind", string(k))
	}
}

// Status adds a conversion status field.
func Status(s types.ConversionStatus) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", string(s))
	}
}

// Pages adds a page count field.
func Pages(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("pages", n)
	}
}

// Size adds a byte size field.
func Size(n int64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("bytes", n)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Int adds an integer field with custom key.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
