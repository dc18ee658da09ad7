// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remotefn

import (
	"context"
	"fmt"
)

// Local is an in-process Function fake/dispatcher: it looks up name
// in Handlers and runs it directly against payload, wrapping the
// result (or panic) the same way a real Lambda invocation's response
// envelope would. It is also how the single-binary "distributed"
// worker-sort role runs its quick-sort/kway-merge handlers without an
// actual Lambda round trip.
type Local struct {
	Handlers map[string]func(ctx context.Context, payload []byte) ([]byte, error)
}

// NewLocal returns a Local dispatcher over handlers.
func NewLocal(handlers map[string]func(ctx context.Context, payload []byte) ([]byte, error)) *Local {
	return &Local{Handlers: handlers}
}

func (l *Local) Invoke(ctx context.Context, name string, payload []byte) (Response, error) {
	handler, ok := l.Handlers[name]
	if !ok {
		return Response{}, fmt.Errorf("remotefn: unknown function %q", name)
	}
	out, err := handler(ctx, payload)
	if err != nil {
		return Response{Status: 500, Payload: []byte(fmt.Sprintf(`{"errorMessage":%q}`, err.Error()))}, nil
	}
	return Response{Status: 200, Payload: out}, nil
}
