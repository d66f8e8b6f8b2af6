package jmap

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler is the function value a registry maps a method name onto. It
// receives already back-reference-resolved arguments and the per-request
// IdMap, and returns every response the call produces (usually one; a
// handler like EmailSubmission/set may emit more).
//
// A Handler that returns an error causes the dispatcher to frame a
// serverError response and roll back any open transaction; it must not
// itself have left a transaction open on the error path.
type Handler func(args map[string]interface{}, ids *IdMap) ([]MethodResponse, error)

// TransactionManager lets the dispatcher roll back a handler's open
// transaction after an unhandled failure, without the dispatcher knowing
// anything about the backing store itself.
type TransactionManager interface {
	RollbackOpenTransaction()
}

// Registry maps method names ("Mailbox/get", "Email/set", ...) to
// handlers, built once at startup — the systems-language analogue of the
// source's reflective "can(\"api_\" + name)" dispatch.
type Registry struct {
	handlers map[string]Handler
	log      *logrus.Logger
	tx       TransactionManager
}

// NewRegistry creates an empty registry. log and tx may be nil; a nil
// TransactionManager simply skips the rollback-on-panic step.
func NewRegistry(log *logrus.Logger, tx TransactionManager) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		log:      log,
		tx:       tx,
	}
}

// Register binds a method name to its handler. Method names are stored
// under the internal lookup key (slashes replaced with underscores), the
// same normalization dispatch applies to incoming names, mirroring the
// source's "can(\"api_\" + name.replace('/', '_'))" convention.
func (r *Registry) Register(method string, h Handler) {
	r.handlers[normalizeMethodName(method)] = h
}

func normalizeMethodName(method string) string {
	return strings.ReplaceAll(method, "/", "_")
}

// Dispatch runs every method call of req in order, resolving back-refs,
// looking up a handler, and invoking it inside a failure guard. It never
// stops early: a failing call yields one error response and the batch
// continues.
func (r *Registry) Dispatch(req Request) Response {
	log := NewResultLog()
	ids := NewIdMap()

	for _, call := range req.MethodCalls {
		start := time.Now()
		responses := r.dispatchOne(call, log, ids)
		elapsed := time.Since(start)

		for _, resp := range responses {
			log.Append(resp)
		}

		r.log.WithFields(logrus.Fields{
			"method":   call.Name,
			"callTag":  call.CallTag,
			"elapsed":  elapsed.String(),
			"outcome":  outcomeOf(responses),
		}).Debug("dispatched method call")
	}

	return Response{MethodResponses: log.All()}
}

func outcomeOf(responses []MethodResponse) string {
	if len(responses) == 0 {
		return "empty"
	}
	return responses[0].Name
}

// dispatchOne resolves args, looks up the handler, and runs it inside a
// recover-based failure guard so a handler panic becomes a serverError
// response instead of taking down the batch.
func (r *Registry) dispatchOne(call MethodCall, log *ResultLog, ids *IdMap) []MethodResponse {
	resolvedArgs, err := ResolveArgs(call.Args, log)
	if err != nil {
		return []MethodResponse{errorResponse(call.CallTag, "invalidResultReference", err.Error())}
	}

	handler, ok := r.handlers[normalizeMethodName(call.Name)]
	if !ok {
		return []MethodResponse{errorResponse(call.CallTag, "unknownMethod", fmt.Sprintf("no handler for %q", call.Name))}
	}

	responses, err := r.runGuarded(handler, resolvedArgs, ids)
	if err != nil {
		if r.tx != nil {
			r.tx.RollbackOpenTransaction()
		}
		return []MethodResponse{errorResponse(call.CallTag, "serverError", err.Error())}
	}

	for i := range responses {
		responses[i].CallTag = call.CallTag
	}
	return responses
}

// runGuarded recovers a handler panic and turns it into an error so a bug
// in one domain handler never aborts the whole batch.
func (r *Registry) runGuarded(h Handler, args map[string]interface{}, ids *IdMap) (responses []MethodResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.tx != nil {
				r.tx.RollbackOpenTransaction()
			}
			err = fmt.Errorf("internalError: %v", rec)
		}
	}()
	return h(args, ids)
}
