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

// Package remotefn backs the Lambda stage: invoking a named remote
// function with a JSON payload and forwarding its decoded result.
package remotefn

import "context"

// Response is a remote function invocation's raw result: the payload
// bytes (JSON-encoded) and the transport status code.
type Response struct {
	Status  int
	Payload []byte
}

// Function is the narrow seam Lambda depends on. Real adapters wrap
// an AWS Lambda client; Local below is the in-process fake used for
// tests and the single-binary "quick-sort"/"kway-merge" dispatch
// path, where the function body runs in-process instead of crossing
// a network boundary.
type Function interface {
	Invoke(ctx context.Context, name string, payload []byte) (Response, error)
}
