package packagekit

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type contextKey string

const (
	ContextPackagePathKey    contextKey = "packagePath"
	ContextPackageVersionKey contextKey = "packageVersion"
	ContextSignedKey         contextKey = "signed"
	ContextSignerSubjectKey  contextKey = "signerSubject"

	contextValuesKey contextKey = "packagekitValues"
)

type contextValues struct {
	sync.Mutex
	m map[contextKey]string
}

// InitContext sets up a place in the context for the packaging steps
// to record what they produced. Callers read it back with
// GetFromContext once packaging returns.
func InitContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextValuesKey, &contextValues{m: make(map[contextKey]string)})
}

// SetInContext records a value. It is a noop if the context was not
// initialized with InitContext.
func SetInContext(ctx context.Context, key contextKey, val string) {
	cv, ok := ctx.Value(contextValuesKey).(*contextValues)
	if !ok {
		return
	}

	cv.Lock()
	defer cv.Unlock()
	cv.m[key] = val
}

func GetFromContext(ctx context.Context, key contextKey) (string, error) {
	cv, ok := ctx.Value(contextValuesKey).(*contextValues)
	if !ok {
		return "", errors.New("context not initialized for packagekit values")
	}

	cv.Lock()
	defer cv.Unlock()
	return cv.m[key], nil
}
