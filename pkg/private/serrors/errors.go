// Copyright 2021 dtnet
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serrors provides enhanced errors. Errors created with serrors carry
// additional context in the form of key-value pairs. The package provides
// wrapping methods; the returned errors support errors.Is and errors.As. For
// an error err wrapping cause, errors.Is(err, cause) is always true.
package serrors

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ctxPair is one item of context info.
type ctxPair struct {
	Key   string
	Value any
}

// basicError carries a message, an optional cause and key-value context.
type basicError struct {
	msg   string
	cause error
	ctx   []ctxPair
}

func (e basicError) Error() string {
	var buf bytes.Buffer
	buf.WriteString(e.msg)
	if len(e.ctx) != 0 {
		fmt.Fprint(&buf, " ")
		encodeContext(&buf, e.ctx)
	}
	if e.cause != nil {
		fmt.Fprintf(&buf, ": %s", e.cause)
	}
	return buf.String()
}

func (e basicError) Unwrap() error {
	return e.cause
}

// MarshalLogObject implements zapcore.ObjectMarshaler to have a nicer log
// representation.
func (e basicError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.msg)
	if e.cause != nil {
		enc.AddString("cause", e.cause.Error())
	}
	for _, pair := range e.ctx {
		zap.Any(pair.Key, pair.Value).AddTo(enc)
	}
	return nil
}

// joinedError aggregates context around an existing error, typically a unique
// sentinel error.
type joinedError struct {
	basicError
	error error
}

func (e joinedError) Error() string {
	var buf bytes.Buffer
	buf.WriteString(e.error.Error())
	if len(e.ctx) != 0 {
		fmt.Fprint(&buf, " ")
		encodeContext(&buf, e.ctx)
	}
	if e.cause != nil {
		fmt.Fprintf(&buf, ": %s", e.cause)
	}
	return buf.String()
}

func (e joinedError) Unwrap() []error {
	return []error{e.error, e.cause}
}

// New creates a new error with the given message and context.
func New(msg string, errCtx ...any) error {
	return basicError{
		msg: msg,
		ctx: mkContext(errCtx),
	}
}

// Wrap returns an error that associates the given message with the given
// cause (an underlying error) unless nil, and the given context. The returned
// error supports Is; Is(cause) returns true.
func Wrap(msg string, cause error, errCtx ...any) error {
	return basicError{
		msg:   msg,
		cause: cause,
		ctx:   mkContext(errCtx),
	}
}

// Join returns an error that associates the given error with the given cause
// (an underlying error) unless nil, and the given context.
//
// The returned error supports Is. Is(err) returns true, and if cause isn't
// nil, Is(cause) returns true as well.
func Join(err, cause error, errCtx ...any) error {
	if err == nil && cause == nil {
		return nil
	}
	return joinedError{
		basicError: basicError{cause: cause, ctx: mkContext(errCtx)},
		error:      err,
	}
}

// List is a slice of errors.
type List []error

// Error implements the error interface.
func (e List) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return fmt.Sprintf("[ %s ]", strings.Join(s, "; "))
}

// ToError returns the object as error interface implementation, or nil if the
// list is empty.
func (e List) ToError() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func mkContext(errCtx []any) []ctxPair {
	np := len(errCtx) / 2
	ctx := make([]ctxPair, np)
	for i := 0; i < np; i++ {
		ctx[i] = ctxPair{Key: fmt.Sprint(errCtx[2*i]), Value: errCtx[2*i+1]}
	}
	sort.Slice(ctx, func(a, b int) bool {
		return ctx[a].Key < ctx[b].Key
	})
	return ctx
}

func encodeContext(buf *bytes.Buffer, pairs []ctxPair) {
	fmt.Fprint(buf, "{")
	for i, p := range pairs {
		fmt.Fprintf(buf, "%s=%v", p.Key, p.Value)
		if i != len(pairs)-1 {
			fmt.Fprint(buf, "; ")
		}
	}
	fmt.Fprint(buf, "}")
}
